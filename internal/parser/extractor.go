package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat 文件格式不被支持
var ErrUnsupportedFormat = errors.New("unsupported file format, use PDF or DOCX")

// TextExtractor 按文件扩展名分发到对应的提取器
type TextExtractor struct {
	pdf  *EinoPDFTextExtractor
	docx *DOCXTextExtractor
}

// NewTextExtractor 创建统一的文本提取器
func NewTextExtractor(ctx context.Context) (*TextExtractor, error) {
	pdfExtractor, err := NewEinoPDFTextExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDF extractor: %w", err)
	}

	return &TextExtractor{
		pdf:  pdfExtractor,
		docx: NewDOCXTextExtractor(),
	}, nil
}

// IsSupportedFilename 判断文件名的扩展名是否受支持
func IsSupportedFilename(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// Extract 根据文件名后缀提取文本内容
func (t *TextExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return t.pdf.ExtractTextFromBytes(ctx, data, filename)
	case ".docx":
		return t.docx.ExtractTextFromBytes(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}
