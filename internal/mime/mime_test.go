package mime

import (
	"net/http"
	"testing"
)

func TestMediaExtensionsDedupesAcrossCategories(t *testing.T) {
	exts := MediaExtensions("image", "video", "image")
	seen := make(map[string]int)
	for _, e := range exts {
		seen[e]++
	}
	for ext, n := range seen {
		if n != 1 {
			t.Errorf("extension %s appeared %d times, want 1", ext, n)
		}
	}
	if seen[".png"] != 1 || seen[".mp4"] != 1 {
		t.Errorf("expected .png and .mp4 in result, got %v", exts)
	}
}

func TestMediaExtensionsUnknownCategoryIgnored(t *testing.T) {
	if exts := MediaExtensions("sheet-music"); len(exts) != 0 {
		t.Errorf("expected no extensions for unknown category, got %v", exts)
	}
}

func TestExtensionForContentTypeExactMatch(t *testing.T) {
	if ext := ExtensionForContentType("image/webp", ""); ext != ".webp" {
		t.Errorf("got %q, want .webp", ext)
	}
}

func TestExtensionForContentTypeStripsParameters(t *testing.T) {
	if ext := ExtensionForContentType("image/png; charset=binary", ""); ext != ".png" {
		t.Errorf("got %q, want .png", ext)
	}
}

func TestExtensionForContentTypeFallsBackToURLPath(t *testing.T) {
	ext := ExtensionForContentType("application/octet-stream", "https://cdn.example.com/media/clip.mov")
	if ext != ".mov" {
		t.Errorf("got %q, want .mov", ext)
	}
}

func TestExtensionForContentTypeFallsBackToCategoryGuess(t *testing.T) {
	if ext := ExtensionForContentType("video/x-exotic-codec", ""); ext != ".video" {
		t.Errorf("got %q, want .video", ext)
	}
}

func TestExtensionForContentTypeDefaultsToBin(t *testing.T) {
	if ext := ExtensionForContentType("application/x-unknown-blob", ""); ext != ".bin" {
		t.Errorf("got %q, want .bin", ext)
	}
}

func TestAnalyzeFileTypeCategorizesAndReadsContentDisposition(t *testing.T) {
	headers := http.Header{}
	headers.Set("Content-Disposition", `attachment; filename="render.mp4"`)

	info := AnalyzeFileType("video/mp4", "", headers)
	if info.Category != "video" {
		t.Errorf("category = %q, want video", info.Category)
	}
	if !info.IsAttachment {
		t.Error("expected IsAttachment to be true")
	}
	if info.SuggestedFilename != "render.mp4" {
		t.Errorf("suggested filename = %q, want render.mp4", info.SuggestedFilename)
	}
	if info.Extension != ".mp4" {
		t.Errorf("extension = %q, want .mp4", info.Extension)
	}
}

func TestAnalyzeFileTypeUsesFilenameExtensionWhenContentTypeUnknown(t *testing.T) {
	headers := http.Header{}
	headers.Set("Content-Disposition", `attachment; filename="archive.zip"`)

	info := AnalyzeFileType("application/x-unknown-blob", "", headers)
	if info.Extension != ".zip" {
		t.Errorf("extension = %q, want .zip", info.Extension)
	}
}
