package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
		wantErr  bool
	}{
		{name: "pdf", filename: "resume.PDF", data: []byte("%PDF-1.7\n%âãÏÓ\n1 0 obj"), want: MIMEPDF},
		{name: "txt", filename: "resume.txt", data: []byte("Jane Doe\nGo developer"), want: MIMETXT},
		{name: "json text as txt", filename: "notes.txt", data: []byte(`{"a": 1}`), want: MIMETXT},
		{name: "docx as zip", filename: "cv.docx", data: []byte("PK\x03\x04\x14\x00\x06\x00"), want: MIMEDOCX},
		{name: "unknown extension", filename: "photo.png", data: []byte("\x89PNG\r\n\x1a\n"), wantErr: true},
		{name: "no extension", filename: "resume", data: []byte("text"), wantErr: true},
		{name: "pdf extension with text body", filename: "fake.pdf", data: []byte("just text"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFileType(tt.filename, tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTextPlain(t *testing.T) {
	text, err := ExtractText(MIMETXT, []byte("  Jane Doe  \n\n\n Go developer \n"))

	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo developer", text)
}

func TestExtractTextRejectsInvalidUTF8(t *testing.T) {
	_, err := ExtractText(MIMETXT, []byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)
}

func TestExtractTextUnsupported(t *testing.T) {
	_, err := ExtractText("image/png", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestExtractTextBrokenPDF(t *testing.T) {
	_, err := ExtractText(MIMEPDF, []byte("%PDF-1.4 garbage"))
	assert.Error(t, err)
}

func TestDocxXMLToText(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t>Go &amp; SQL</w:t></w:r></w:p></w:body></w:document>`

	assert.Equal(t, "Jane Doe\nSkills:\tGo & SQL", DocxXMLToText(xml))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "héll…", Preview("héllo world", 4))
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512.0 B", HumanSize(512))
	assert.Equal(t, "1.5 KB", HumanSize(1536))
	assert.Equal(t, "10.0 MB", HumanSize(10*1024*1024))
}
