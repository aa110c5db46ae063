package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// ConfigurePDFLicense registers the UniPDF metered key. Without it PDF
// extraction fails but plain text keeps working.
func ConfigurePDFLicense(key string) error {
	if key == "" {
		return fmt.Errorf("UNIDOC_LICENSE_KEY not set")
	}
	return license.SetMeteredKey(key)
}

// IsSupportedFile reports whether the inbox watcher should pick up path.
func IsSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".pdf":
		return true
	default:
		return false
	}
}

// ExtractTextFromFile reads a file and returns its text content. PDFs are
// parsed; anything else must be UTF-8 text.
func ExtractTextFromFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", newError(CodeInternal, "extract", "Could not read the uploaded file.", err)
	}
	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		text, err := extractTextFromPDF(content)
		if err != nil {
			return "", newError(CodeUnsupportedFile, "extract", "Could not extract text from the PDF.", err)
		}
		return text, nil
	}
	if !utf8.Valid(content) {
		return "", newError(CodeUnsupportedFile, "extract", "Uploaded file is not UTF-8 text.", nil)
	}
	return strings.TrimPrefix(string(content), "\ufeff"), nil
}

// extractTextFromPDF uses UniPDF to get all text from a PDF document.
func extractTextFromPDF(content []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", err
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", err
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n\n") // Add space between pages
	}

	return sb.String(), nil
}
