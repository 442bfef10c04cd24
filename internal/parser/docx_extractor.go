package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DOCXTextExtractor 从DOCX文件提取纯文本
// DOCX本质是zip包，正文位于 word/document.xml
type DOCXTextExtractor struct{}

// NewDOCXTextExtractor 创建DOCX文本提取器
func NewDOCXTextExtractor() *DOCXTextExtractor {
	return &DOCXTextExtractor{}
}

// ExtractTextFromBytes 从字节数组提取DOCX全文，段落之间以换行符分隔
func (d *DOCXTextExtractor) ExtractTextFromBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("document.xml not found in docx archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read document.xml: %w", err)
	}

	return stripDocxXML(string(raw)), nil
}

// stripDocxXML 遍历XML token，收集文本内容
// 段落(w:p)和换行(w:br)结束时插入换行符
func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
