// Package attachment turns uploaded files into inline attachments.
package attachment

import (
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/vovakirdan/supportchat-server/internal/core"
	"github.com/vovakirdan/supportchat-server/internal/store"
)

// DefaultMaxBytes is the default upload cap.
const DefaultMaxBytes int64 = 5 << 20

const genericMime = "application/octet-stream"

// Encoder validates uploads and encodes them as data URIs.
type Encoder struct {
	maxBytes int64
}

// NewEncoder returns an encoder that rejects files over maxBytes.
// A non-positive maxBytes uses DefaultMaxBytes.
func NewEncoder(maxBytes int64) *Encoder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Encoder{maxBytes: maxBytes}
}

// MaxBytes returns the configured cap.
func (e *Encoder) MaxBytes() int64 {
	return e.maxBytes
}

// TooLargeMessage is the text returned to clients for oversized uploads.
func (e *Encoder) TooLargeMessage() string {
	return fmt.Sprintf("File size too large. Maximum size is %s.", humanize.IBytes(uint64(e.maxBytes)))
}

// Read consumes r and encodes its content. It stops reading one byte past the cap.
func (e *Encoder) Read(name, declaredMime string, r io.Reader) (*store.Attachment, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return e.Encode(name, declaredMime, data)
}

// Encode validates data and returns it as an attachment.
func (e *Encoder) Encode(name, declaredMime string, data []byte) (*store.Attachment, error) {
	if int64(len(data)) > e.maxBytes {
		return nil, core.TooLarge(e.TooLargeMessage())
	}
	if len(data) == 0 {
		return nil, core.Invalid("file is empty")
	}

	mime := strings.TrimSpace(declaredMime)
	if mime == "" || mime == genericMime {
		mime = mimetype.Detect(data).String()
	}

	original := filepath.Base(name)
	if original == "." || original == string(filepath.Separator) {
		original = "upload"
	}

	return &store.Attachment{
		Filename:     original,
		OriginalName: original,
		MimeType:     mime,
		Size:         int64(len(data)),
		Data:         DataURI(mime, data),
	}, nil
}

// DataURI renders data as a base64 data URI.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
