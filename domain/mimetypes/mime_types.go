// Package mimetypes sniffs uploaded bytes. The content type declared by the
// client is never trusted.
package mimetypes

import (
	"mime"
	"strings"

	"syncx/errors"

	"github.com/gabriel-vasile/mimetype"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"
	TextHTML  MIME = "text/html"

	ApplicationPDF  MIME = "application/pdf"
	ApplicationJSON MIME = "application/json"
	OctetStream     MIME = "application/octet-stream"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// Detect returns the media type of data without its parameters.
func Detect(data []byte) MIME {
	return ToMIME(mimetype.Detect(data).String())
}

// ToMIME strips parameters such as charset from a detected type.
func ToMIME(detected string) MIME {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown
	}
	return MIME(mt)
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt := ToMIME(detected)
	if mt == Unknown {
		return Unknown, false
	}
	return expected, mt == expected
}

func (m MIME) IsImage() bool { return strings.HasPrefix(string(m), "image/") }

// RequireImage rejects avatars and group pictures that are not images.
func RequireImage(name string, data []byte) error {
	if mt := Detect(data); !mt.IsImage() {
		return errors.ErrNotAnImage.WithMessage("%s is not an image (%s)", name, mt)
	}
	return nil
}
