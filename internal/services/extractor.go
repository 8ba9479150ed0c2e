package services

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETXT  = "text/plain"
)

var allowedExtensions = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".txt":  MIMETXT,
}

var xmlTags = regexp.MustCompile(`<[^>]+>`)

// DetectFileType checks the extension against pdf/docx/txt and sniffs the
// content to confirm it. It returns the canonical MIME type to upload with.
func DetectFileType(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	expected, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	detected := mimetype.Detect(data)

	var accepted []string
	switch expected {
	case MIMEPDF:
		accepted = []string{MIMEPDF}
	case MIMEDOCX:
		// small documents are sometimes only recognised as a zip container
		accepted = []string{MIMEDOCX, "application/zip"}
	case MIMETXT:
		accepted = []string{MIMETXT}
	}

	for m := detected; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return expected, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s content detected as %s", ErrUnsupportedFileType, ext, detected.String())
}

// ExtractText returns the plain text of a pdf, docx or txt payload.
func ExtractText(mimeType string, data []byte) (string, error) {
	switch mimeType {
	case MIMEPDF:
		return extractPDFText(data)
	case MIMEDOCX:
		return extractDocxText(data)
	case MIMETXT:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("text file is not valid UTF-8")
		}
		return CleanText(string(data)), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := CleanText(textBuilder.String())
	if text == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}

	return text, nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return DocxXMLToText(doc.Editable().GetContent()), nil
}

// DocxXMLToText flattens word/document.xml into paragraphs.
func DocxXMLToText(xml string) string {
	xml = strings.ReplaceAll(xml, "</w:p>", "\n")
	xml = strings.ReplaceAll(xml, "<w:tab/>", "\t")
	xml = strings.ReplaceAll(xml, "<w:br/>", "\n")
	text := xmlTags.ReplaceAllString(xml, "")
	return CleanText(html.UnescapeString(text))
}

// CleanText trims every line and drops the empty ones.
func CleanText(text string) string {
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	var cleanedLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}

// Preview cuts text to at most max runes.
func Preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "…"
}

func HumanSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f PB", size)
}
