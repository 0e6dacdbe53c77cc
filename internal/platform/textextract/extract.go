// Package textextract recovers plain text from uploaded clinical documents.
// PDF files go through a structured text extractor; anything else is decoded
// best-effort with a printable-character filter.
package textextract

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// minUsableChars is the smallest trimmed length accepted from a best-effort
// decode; shorter results are treated as unreadable binary.
const minUsableChars = 30

// FromDocument extracts readable text from a document upload. It returns an
// empty string when nothing usable was recovered, signalling the caller to
// take the fallback path.
func FromDocument(content []byte, filename string) string {
	if strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		if t := pdfText(content); strings.TrimSpace(t) != "" {
			return t
		}
	}
	return rawText(content)
}

// pdfText extracts the plain text of every page. The pdf package panics on
// some malformed files, so extraction failures of any kind yield "".
func pdfText(content []byte) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return ""
	}
	return buf.String()
}

// rawText decodes the bytes leniently, dropping invalid sequences and
// non-printable runes, and returns the result only when enough readable
// characters remain.
func rawText(content []byte) string {
	var sb strings.Builder
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\t' || r == ' ' {
			sb.WriteRune(r)
		}
	}
	printable := sb.String()
	if len(strings.TrimSpace(printable)) > minUsableChars {
		return printable
	}
	return ""
}
