package constants

import "strings"

// Document formats accepted by the ingestion layer.
const (
	IMAGE = "IMAGE"
	PDF   = "PDF"
)

// AllowedExtensions holds the file extensions the pipeline will pick up.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"pdf":  {},
}

var extToMIME = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns IMAGE or PDF for a normalized extension, or "" if unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg", "png", "webp":
		return IMAGE
	case "pdf":
		return PDF
	default:
		return ""
	}
}

// MIMEForExt returns the declared MIME type for a normalized extension.
func MIMEForExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}
