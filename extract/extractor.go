package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/voxhive/knowledged/core"
)

// textMimeTypes are decoded directly without a converter.
var textMimeTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
}

// docconvMimeTypes are handed to docconv for text extraction.
var docconvMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword": true,
	"application/rtf":    true,
	"text/html":          true,
}

// Extractor converts raw document bytes into normalized text. It is a pure
// transform: the same input and configuration always produce the same output.
type Extractor struct {
	maxTextLen int // maximum normalized text length in characters
	logger     *slog.Logger
}

// NewExtractor creates an extractor that rejects documents whose normalized
// text exceeds maxTextLen characters.
func NewExtractor(maxTextLen int) *Extractor {
	return &Extractor{
		maxTextLen: maxTextLen,
		logger:     slog.Default().With("component", "extractor"),
	}
}

// Supported reports whether the extractor can handle the given MIME type.
// Parameters such as charset are ignored.
func Supported(mimeType string) bool {
	mt := mediaType(mimeType)
	return textMimeTypes[mt] || docconvMimeTypes[mt]
}

// CheckPayloadSize rejects a raw payload that already exceeds the configured
// maximum text length. For text types the character count is checked directly;
// for converter types the raw byte size is used as the bound. Extract remains
// the authority on the normalized text length.
func (e *Extractor) CheckPayloadSize(payload []byte, mimeType string) error {
	mt := mediaType(mimeType)
	if textMimeTypes[mt] {
		if n := utf8.RuneCount(payload); n > e.maxTextLen {
			return fmt.Errorf("%w: %d characters, limit %d", core.ErrPayloadTooLarge, n, e.maxTextLen)
		}
		return nil
	}
	if len(payload) > e.maxTextLen {
		return fmt.Errorf("%w: %d bytes, limit %d characters", core.ErrPayloadTooLarge, len(payload), e.maxTextLen)
	}
	return nil
}

// Extract reads the full payload and returns its normalized text.
//
// Fails with core.ErrUnsupportedType before reading when the MIME type is not
// handled, with core.ErrPayloadTooLarge when the normalized text exceeds the
// configured maximum, and with core.ErrEmptyDocument when nothing usable
// remains after normalization.
func (e *Extractor) Extract(r io.Reader, mimeType string) (string, error) {
	mt := mediaType(mimeType)

	var (
		text string
		err  error
	)
	switch {
	case textMimeTypes[mt]:
		var data []byte
		data, err = io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read payload: %w", err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: payload is not valid UTF-8", core.ErrInvalidDocument)
		}
		text = string(data)
	case docconvMimeTypes[mt]:
		text, err = e.convert(r, mt)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedType, mt)
	}

	text = NormalizeText(text)
	n := len([]rune(text))
	if n > e.maxTextLen {
		return "", fmt.Errorf("%w: %d characters, limit %d", core.ErrPayloadTooLarge, n, e.maxTextLen)
	}
	if n == 0 {
		return "", core.ErrEmptyDocument
	}

	e.logger.Debug("extracted document text", "mime", mt, "chars", n)
	return text, nil
}

func (e *Extractor) convert(r io.Reader, mt string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read payload: %w", err)
	}
	res, err := docconv.Convert(bytes.NewReader(data), mt, false)
	if err != nil {
		return "", fmt.Errorf("%w: docconv %s: %v", core.ErrExtractionFailed, mt, err)
	}
	return res.Body, nil
}

// NormalizeText canonicalizes extracted text: CRLF and CR become LF, NUL
// bytes are dropped, and trailing whitespace is trimmed from each line.
// Chunk offsets always refer to this normalized form.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func mediaType(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}
