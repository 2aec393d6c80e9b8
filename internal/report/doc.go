// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: one line per page (URL, text length, image count)
//   - JSONWriter: the complete report for tool integration
//   - MarkdownWriter: tables and charts for sharing
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
