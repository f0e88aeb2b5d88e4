// Package mime maps content types to file extensions and coarse media
// categories. It backs the generation downloader's "file matching expected
// extensions" completion check (spec §4.8) and, optionally, a harvested
// entry's suggested extension when a server omits one from the URL.
package mime

import (
	stdmime "mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// extensionByContentType maps content types this harvester actually cares
// about to a canonical file extension. Kept intentionally narrower than a
// general-purpose MIME database: entries exist for the categories
// MediaExtensions can return plus the handful of document/archive types a
// generation site's "download" button might produce.
var extensionByContentType = map[string]string{
	"image/jpeg":  ".jpg",
	"image/jpg":   ".jpg",
	"image/pjpeg": ".jpg",
	"image/png":   ".png",
	"image/apng":  ".apng",
	"image/gif":   ".gif",
	"image/webp":  ".webp",
	"image/svg+xml": ".svg",
	"image/tiff":  ".tiff",
	"image/bmp":   ".bmp",
	"image/heif":  ".heif",
	"image/heic":  ".heic",
	"image/avif":  ".avif",

	"video/mp4":        ".mp4",
	"video/mpeg":       ".mpeg",
	"video/ogg":        ".ogv",
	"video/webm":       ".webm",
	"video/x-msvideo":  ".avi",
	"video/quicktime":  ".mov",
	"video/x-matroska": ".mkv",

	"audio/mpeg": ".mp3",
	"audio/mp4":  ".m4a",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
	"audio/webm": ".weba",
	"audio/flac": ".flac",

	"application/pdf": ".pdf",
	"application/zip": ".zip",
	"application/json": ".json",
}

// categoryExtensions groups extensionByContentType by coarse category, used
// by MediaExtensions to build a watch-list for a particular kind of harvest.
var categoryExtensions = map[string][]string{
	"image": {".jpg", ".png", ".apng", ".gif", ".webp", ".svg", ".tiff", ".bmp", ".heif", ".heic", ".avif"},
	"video": {".mp4", ".mpeg", ".ogv", ".webm", ".avi", ".mov", ".mkv"},
	"audio": {".mp3", ".m4a", ".ogg", ".wav", ".weba", ".flac"},
}

// MediaExtensions returns the deduplicated union of file extensions for the
// requested categories ("image", "video", "audio"). Unknown categories are
// ignored. Used as the default expected-extensions list for a generation
// harvest that hasn't been told otherwise.
func MediaExtensions(categories ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range categories {
		for _, ext := range categoryExtensions[c] {
			if !seen[ext] {
				seen[ext] = true
				out = append(out, ext)
			}
		}
	}
	return out
}

// ExtensionForContentType resolves a file extension for a content type,
// falling back to the standard library's registry, then the URL's path or
// a "file"/"filename"/"name" query parameter, then a coarse category
// guess, then ".bin". The generic "application/octet-stream" skips the
// standard library's registry, so the URL decides its extension.
func ExtensionForContentType(contentType, fileURL string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}

	if ext, ok := extensionByContentType[contentType]; ok {
		return ext
	}
	if contentType != "application/octet-stream" {
		if exts, err := stdmime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if fileURL != "" {
		if parsed, err := url.Parse(fileURL); err == nil {
			if ext := filepath.Ext(parsed.Path); ext != "" {
				return ext
			}
			for _, key := range []string{"file", "filename", "name", "download", "attachment"} {
				if v := parsed.Query().Get(key); v != "" {
					if ext := filepath.Ext(v); ext != "" {
						return ext
					}
				}
			}
		}
	}

	switch {
	case strings.HasPrefix(contentType, "audio/"):
		return ".audio"
	case strings.HasPrefix(contentType, "video/"):
		return ".video"
	case strings.HasPrefix(contentType, "image/"):
		return ".img"
	case strings.HasPrefix(contentType, "text/"):
		return ".txt"
	default:
		return ".bin"
	}
}

// FileTypeInfo is what AnalyzeFileType reports about a downloaded response.
type FileTypeInfo struct {
	ContentType       string
	Extension         string
	Category          string
	IsAttachment      bool
	SuggestedFilename string
}

// AnalyzeFileType classifies a response by content type, optionally
// refining the suggested filename/extension from a Content-Disposition
// header.
func AnalyzeFileType(contentType, fileURL string, headers http.Header) FileTypeInfo {
	info := FileTypeInfo{
		ContentType: contentType,
		Extension:   ExtensionForContentType(contentType, fileURL),
	}

	switch {
	case strings.HasPrefix(contentType, "image/"):
		info.Category = "image"
	case strings.HasPrefix(contentType, "video/"):
		info.Category = "video"
	case strings.HasPrefix(contentType, "audio/"):
		info.Category = "audio"
	case strings.HasPrefix(contentType, "text/"), contentType == "application/json", strings.Contains(contentType, "xml"):
		info.Category = "text"
	case strings.Contains(contentType, "zip"), strings.Contains(contentType, "compressed"), strings.Contains(contentType, "archive"), strings.Contains(contentType, "tar"):
		info.Category = "archive"
	default:
		info.Category = "binary"
	}

	if cd := headers.Get("Content-Disposition"); cd != "" {
		if strings.Contains(cd, "attachment") {
			info.IsAttachment = true
		}
		if idx := strings.Index(cd, "filename="); idx != -1 {
			filename := strings.Trim(cd[idx+len("filename="):], `"`)
			info.SuggestedFilename = filename
			if info.Extension == ".bin" {
				if ext := filepath.Ext(filename); ext != "" {
					info.Extension = ext
				}
			}
		}
	}

	return info
}
