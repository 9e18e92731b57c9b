package constants

import "strings"

// Source formats for documents handed to OCR.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the extensions accepted for registration documents and listing photos.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"heic": {},
	"heif": {},
}

var heicExts = map[string]struct{}{
	"heic":  {},
	"heif":  {},
	"heics": {},
	"heifs": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsHEICExt reports whether ext names a HEIC/HEIF container.
func IsHEICExt(ext string) bool {
	_, ok := heicExts[NormalizeExt(ext)]
	return ok
}

// MapExtToFormat returns PDF or IMAGE for a known extension and "" otherwise.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := AllowedExtensions[ext]; ok {
		return IMAGE
	}
	return ""
}
