// Package imagemeta extracts metadata from downloaded images.
//
// Only a fixed set of EXIF tags is kept: the ones that describe the device,
// the software, the author, when the picture was taken and where.
package imagemeta

import (
	"path"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// keptTags lists the EXIF tags that Extract returns.
var keptTags = map[string]bool{
	// Location
	"GPSLatitude":     true,
	"GPSLongitude":    true,
	"GPSLatitudeRef":  true,
	"GPSLongitudeRef": true,

	// Device
	"Make":               true,
	"Model":              true,
	"SerialNumber":       true,
	"CameraSerialNumber": true,
	"BodySerialNumber":   true,
	"LensSerialNumber":   true,

	// Software
	"Software":           true,
	"ProcessingSoftware": true,
	"HostComputer":       true,

	// Author
	"Artist":    true,
	"Author":    true,
	"Copyright": true,
	"XPAuthor":  true,

	// Time
	"DateTimeOriginal":  true,
	"DateTimeDigitized": true,
	"DateTime":          true,
}

// exifExtensions are file extensions of formats that can carry EXIF data.
var exifExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
}

// HasEXIFSupport reports whether an image with the given URL path or
// Content-Type may contain EXIF data. Other formats are not worth scanning.
func HasEXIFSupport(urlPath, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "image/jpeg") ||
		strings.HasPrefix(ct, "image/tiff") ||
		strings.HasPrefix(ct, "image/heic") {
		return true
	}
	return exifExtensions[strings.ToLower(path.Ext(urlPath))]
}

// Extract returns the kept EXIF tags found in the image bytes.
// It returns nil if the data has no EXIF block or cannot be parsed;
// missing metadata is not an error for a crawler.
func Extract(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	tags := make(map[string]string)
	for _, entry := range entries {
		if !keptTags[entry.TagName] {
			continue
		}
		// The first occurrence wins; thumbnails repeat some tags in IFD1.
		if _, ok := tags[entry.TagName]; ok {
			continue
		}
		tags[entry.TagName] = entry.Formatted
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}

// HasLocation reports whether the tags include GPS coordinates.
func HasLocation(tags map[string]string) bool {
	_, lat := tags["GPSLatitude"]
	_, lon := tags["GPSLongitude"]
	return lat && lon
}
