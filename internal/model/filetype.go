package model

import (
	"path/filepath"
	"strings"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".svg": true,
}

var documentExts = map[string]bool{
	".pdf": true, ".txt": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true,
	".md": true, ".json": true,
}

// FileTypeOf classifies a file as image, document or plain file from its
// MIME type, falling back to the extension when the MIME type is missing
// or unhelpful. Derived once at import time.
func FileTypeOf(name, mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return TypeImage
	}
	if mimeType == "application/pdf" || strings.Contains(mimeType, "text/") {
		return TypeDocument
	}

	ext := strings.ToLower(filepath.Ext(name))
	if imageExts[ext] {
		return TypeImage
	}
	if documentExts[ext] {
		return TypeDocument
	}
	return TypeFile
}
