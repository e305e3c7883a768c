// Package upload reads the single image part of an analysis request.
package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes is the largest image accepted by the analysis endpoints.
const MaxImageBytes = 10 << 20

var (
	ErrNotMultipart   = errors.New("request is not multipart/form-data")
	ErrMissingImage   = errors.New("no image file provided")
	ErrMultipleImages = errors.New("exactly one image file is allowed")
	ErrTooLarge       = errors.New("image exceeds size limit")
	ErrNotImage       = errors.New("only image files are allowed")
)

// Image is an uploaded picture held in memory.
type Image struct {
	Data     []byte
	MIME     string
	Filename string
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL suitable for inline storage.
func (i Image) DataURL() string {
	return "data:" + i.MIME + ";base64," + i.Base64()
}

// ReadImage streams the multipart body of r and returns the single file part
// named field. Non-file parts are drained and ignored. A declared non-image
// type is rejected, and the sniffed type must be image/*; the sniffed type is
// the one recorded.
func ReadImage(r *http.Request, field string, maxBytes int64) (*Image, error) {
	ct := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, ErrNotMultipart
	}

	mr := multipart.NewReader(r.Body, params["boundary"])
	var img *Image
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != field || part.FileName() == "" {
			_, _ = io.Copy(io.Discard, part)
			part.Close()
			continue
		}
		if img != nil {
			part.Close()
			return nil, ErrMultipleImages
		}
		img, err = readPart(part, maxBytes)
		part.Close()
		if err != nil {
			return nil, err
		}
	}
	if img == nil {
		return nil, ErrMissingImage
	}
	return img, nil
}

func readPart(part *multipart.Part, maxBytes int64) (*Image, error) {
	if !declaredImage(part.Header.Get("Content-Type")) {
		return nil, ErrNotImage
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if n > maxBytes {
		return nil, ErrTooLarge
	}
	if n == 0 {
		return nil, ErrMissingImage
	}

	detected := mimetype.Detect(buf.Bytes())
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, ErrNotImage
	}
	return &Image{
		Data:     buf.Bytes(),
		MIME:     baseType(detected.String()),
		Filename: part.FileName(),
	}, nil
}

// declaredImage accepts image/* and the generic types clients send when
// they do not know better; the content is sniffed afterwards either way.
func declaredImage(ct string) bool {
	ct = strings.ToLower(baseType(ct))
	return ct == "" || ct == "application/octet-stream" || strings.HasPrefix(ct, "image/")
}

// baseType strips parameters such as "; charset=utf-8".
func baseType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}

// Status maps a ReadImage error to an HTTP status code.
func Status(err error) int {
	if errors.Is(err, ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
