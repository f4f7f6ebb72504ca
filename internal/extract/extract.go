// Package extract turns uploaded PDF bytes into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNoText means the document parsed but carries no extractable text,
	// e.g. a scanned resume without a text layer.
	ErrNoText = errors.New("no extractable text")
	// ErrUnreadable wraps every parse failure: non-PDF content, encrypted or
	// malformed files.
	ErrUnreadable = errors.New("unreadable pdf")
)

var pdfMagic = []byte("%PDF-")

// Text concatenates the plain text of every page of a PDF.
func Text(data []byte) (string, error) {
	reader, err := open(data)
	if err != nil {
		return "", err
	}
	text, err := pageText(reader)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// PageCount reports the number of pages without extracting text.
func PageCount(data []byte) (int, error) {
	reader, err := open(data)
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

func open(data []byte) (r *pdf.Reader, err error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return nil, fmt.Errorf("%w: missing pdf header", ErrUnreadable)
	}
	// the parser panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return r, nil
}

func pageText(reader *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()
	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		builder.WriteString(content)
	}
	return builder.String(), nil
}
