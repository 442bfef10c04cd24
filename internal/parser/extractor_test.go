package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDocx 构造仅包含正文的最小DOCX压缩包
func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDOCXExtractParagraphs(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>张三 - 后端工程师</w:t></w:r></w:p>
    <w:p><w:r><w:t>技能: Go, Python, Kubernetes</w:t></w:r></w:p>
  </w:body>
</w:document>`

	extractor := NewDOCXTextExtractor()
	text, err := extractor.ExtractTextFromBytes(buildDocx(t, docXML))
	require.NoError(t, err)

	assert.Contains(t, text, "张三 - 后端工程师")
	assert.Contains(t, text, "技能: Go, Python, Kubernetes")
	// 段落之间以换行符分隔
	assert.Contains(t, text, "后端工程师\n")
}

func TestDOCXExtractEmptyData(t *testing.T) {
	extractor := NewDOCXTextExtractor()
	_, err := extractor.ExtractTextFromBytes(nil)
	assert.Error(t, err)
}

func TestDOCXExtractMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	extractor := NewDOCXTextExtractor()
	_, err = extractor.ExtractTextFromBytes(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.xml")
}

func TestIsSupportedFilename(t *testing.T) {
	assert.True(t, IsSupportedFilename("resume.pdf"))
	assert.True(t, IsSupportedFilename("Resume.DOCX"))
	assert.False(t, IsSupportedFilename("resume.doc"))
	assert.False(t, IsSupportedFilename("resume.txt"))
	assert.False(t, IsSupportedFilename("resume"))
}

func TestExtractUnsupportedFormat(t *testing.T) {
	extractor := &TextExtractor{docx: NewDOCXTextExtractor()}
	_, err := extractor.Extract(context.Background(), []byte("plain text"), "resume.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtractDispatchDocx(t *testing.T) {
	docXML := `<w:document xmlns:w="ns"><w:body><w:p><w:r><w:t>hello</w:t></w:r></w:p></w:body></w:document>`
	extractor := &TextExtractor{docx: NewDOCXTextExtractor()}
	text, err := extractor.Extract(context.Background(), buildDocx(t, docXML), "file.docx")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}
