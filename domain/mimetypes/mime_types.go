// Package mimetypes names the media types the agents and the documentation
// loader care about.
package mimetypes

import (
	"mime"
	"slices"
	"strings"
)

type MIME string

const (
	Unknown         MIME = "unknown"
	ApplicationJSON MIME = "application/json"
	ApplicationXML  MIME = "application/xml"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// VisionImages are the image types accepted by the multimodal agents.
var VisionImages = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWEBP}

func parse(detected string) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return MIME(mt), true
}

// Image returns the vision image type for a detected media type.
func Image(detected string) (MIME, bool) {
	m, ok := parse(detected)
	if !ok || !slices.Contains(VisionImages, m) {
		return Unknown, false
	}
	return m, true
}

// IsText reports whether documentation can be read from a file of this type.
func IsText(detected string) bool {
	m, ok := parse(detected)
	if !ok {
		return false
	}
	return strings.HasPrefix(string(m), "text/") || m == ApplicationJSON || m == ApplicationXML
}
