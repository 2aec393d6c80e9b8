package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/nao1215/sitecrawl/internal/imagemeta"
	"github.com/nao1215/sitecrawl/internal/model"
)

// errNoFileName is the cause recorded for image URLs whose path has no
// usable last element, such as "https://example.com/".
var errNoFileName = errors.New("image URL has no file name")

// errImageTooLarge is the cause recorded for images above the size limit.
var errImageTooLarge = errors.New("image exceeds size limit")

// imageFileName returns the local file name for an image URL: the last
// element of the URL path. Same-named images from different pages map to
// the same file and overwrite each other.
func imageFileName(imageURL string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}

	name := path.Base(u.Path)
	switch name {
	case "", ".", "/", "..":
		return "", errNoFileName
	}
	return name, nil
}

// downloadImage fetches imageURL and writes it into the image directory.
// The file is opened, written and closed before downloadImage returns.
func (s *Spider) downloadImage(ctx context.Context, imageURL string) (model.ImageRecord, *Error) {
	name, err := imageFileName(imageURL)
	if err != nil {
		return model.ImageRecord{}, invalidURLError(imageURL, err)
	}

	resp, err := s.get(ctx, imageURL)
	if err != nil {
		return model.ImageRecord{}, downloadError(imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return model.ImageRecord{}, downloadStatusError(imageURL, resp.StatusCode)
	}

	if resp.ContentLength > s.maxImageSize {
		return model.ImageRecord{}, downloadError(imageURL, errImageTooLarge)
	}

	// Read one byte past the limit to detect oversized bodies without a
	// Content-Length header.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxImageSize+1))
	if err != nil {
		return model.ImageRecord{}, downloadError(imageURL, err)
	}
	if int64(len(data)) > s.maxImageSize {
		return model.ImageRecord{}, downloadError(imageURL, errImageTooLarge)
	}

	savePath := filepath.Join(s.imageDir, name)
	if err := writeFileAtomic(savePath, data); err != nil {
		return model.ImageRecord{}, downloadError(imageURL, fmt.Errorf("failed to write image: %w", err))
	}

	record := model.ImageRecord{
		SourceURL:   imageURL,
		Path:        savePath,
		Size:        int64(len(data)),
		ContentType: resp.Header.Get("Content-Type"),
	}

	if imagemeta.HasEXIFSupport(name, record.ContentType) {
		record.EXIF = imagemeta.Extract(data)
		if imagemeta.HasLocation(record.EXIF) {
			s.logger.Warn("image contains GPS coordinates", "image", imageURL)
		}
	}

	return record, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path. Concurrent crawls sharing an image directory therefore see
// one complete image per name, whichever writer renamed last.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name()) //nolint:errcheck
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
