package fetcher

import (
	"fmt"
	"path"
	"strings"
)

const (
	maxFilenameLen  = 200
	maxExtensionLen = 16

	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var extensionByType = map[string]string{
	"application/pdf":              ".pdf",
	"application/msword":           ".doc",
	mimeDocx:                       ".docx",
	"application/vnd.ms-excel":     ".xls",
	mimeXlsx:                       ".xlsx",
	"text/plain":                   ".txt",
	"text/html":                    ".html",
	"image/png":                    ".png",
	"image/jpeg":                   ".jpg",
	"image/tiff":                   ".tiff",
	"application/zip":              ".zip",
	"application/x-zip-compressed": ".zip",
}

var typeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": mimeDocx,
	".xls":  "application/vnd.ms-excel",
	".xlsx": mimeXlsx,
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".zip":  "application/zip",
}

// EnsureExtension appends the extension implied by contentType when name
// has none. Unknown types leave name unchanged.
func EnsureExtension(name, contentType string) string {
	if hasExtension(name) {
		return name
	}
	if ext, ok := extensionByType[mediaType(contentType)]; ok {
		return name + ext
	}
	return name
}

func hasExtension(name string) bool {
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore and
// replaces everything else with an underscore. Names are cut to 200 bytes,
// keeping an extension of up to 16 bytes.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLen {
		ext := path.Ext(out)
		if len(ext) > maxExtensionLen {
			ext = ""
		}
		out = out[:maxFilenameLen-len(ext)] + ext
	}
	if out == "" {
		return "attachment"
	}
	return out
}

// StorageKey is deterministic in its inputs, so importing the same file
// for the same opportunity twice writes the same object.
func StorageKey(orgID, projectID, opportunityID, filename string) string {
	return fmt.Sprintf("org_%s/projects/%s/opportunities/%s/attachments/%s",
		orgID, projectID, opportunityID, SanitizeFilename(filename))
}
