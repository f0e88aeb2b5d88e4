package gallery

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestFindDownloadButtonImageToVideoLandmark(t *testing.T) {
	doc := mustDoc(t, `
		<div id="group">
			<div class="row"><span>Image to video</span></div>
			<div class="panel">
				<span>a</span><span>b</span><span id="dl-span">c</span>
			</div>
		</div>
	`)
	sel, found := New(Selectors{}).FindDownloadButton(doc)
	if !found || sel != "#dl-span" {
		t.Fatalf("FindDownloadButton = (%q, %v), want (#dl-span, true)", sel, found)
	}
}

func TestFindDownloadButtonIconFallback(t *testing.T) {
	doc := mustDoc(t, `<button id="btn2"><span id="icon-download"></span></button>`)
	sel, found := New(Selectors{}).FindDownloadButton(doc)
	if !found || sel != "#btn2" {
		t.Fatalf("FindDownloadButton = (%q, %v), want (#btn2, true)", sel, found)
	}
}

func TestFindDownloadButtonDataAttrFallback(t *testing.T) {
	doc := mustDoc(t, `<div data-download="x"></div>`)
	sel, found := New(Selectors{}).FindDownloadButton(doc)
	if !found || sel != `[data-download="x"]` {
		t.Fatalf("FindDownloadButton = (%q, %v), want ([data-download=\"x\"], true)", sel, found)
	}
}

func TestFindDownloadButtonNoMatch(t *testing.T) {
	doc := mustDoc(t, `<div>nothing here</div>`)
	if _, found := New(Selectors{}).FindDownloadButton(doc); found {
		t.Fatal("expected no match")
	}
}

const containerFixture = `
<div data-generation-id="g1" class="active">
	<div class="meta">
		<div class="timerow"><span>Creation Time</span><span>03 Sep 2025 18:00:00</span></div>
	</div>
	<div class="promptbox"><span aria-describedby="tip1">A detailed prompt describing the scene in full.</span></div>
</div>
`

func TestExtractFromContainerAnchorStrategy(t *testing.T) {
	doc := mustDoc(t, containerFixture)
	c := doc.Find("[data-generation-id]").First()
	md, ok := New(Selectors{}).ExtractFromContainer(c)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if md.CreationTime != "03 Sep 2025 18:00:00" {
		t.Fatalf("CreationTime = %q", md.CreationTime)
	}
	if md.Prompt != "A detailed prompt describing the scene in full." {
		t.Fatalf("Prompt = %q", md.Prompt)
	}
}

func TestExtractMetadataScoresActiveContainer(t *testing.T) {
	doc := mustDoc(t, `
		<div data-generation-id="inactive">
			<span>Creation Time</span><span>01 Jan 2020 00:00:00</span>
			<span aria-describedby="t">a decoy prompt text here</span>
		</div>
		<div data-generation-id="g1" class="active">
			<div class="meta"><div class="timerow"><span>Creation Time</span><span>03 Sep 2025 18:00:00</span></div></div>
			<div class="promptbox"><span aria-describedby="tip1">A detailed prompt describing the scene in full.</span></div>
		</div>
	`)
	md, ok := New(Selectors{}).ExtractMetadata(doc)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if md.CreationTime != "03 Sep 2025 18:00:00" {
		t.Fatalf("expected the active container to win scoring, got CreationTime=%q", md.CreationTime)
	}
}

func TestExtractPromptEllipsisPatternFallback(t *testing.T) {
	doc := mustDoc(t, `
		<div data-generation-id="g1">
			<span>Creation Time</span><span>03 Sep 2025 18:00:00</span>
			<div><span aria-describedby="tip1">A long truncated prompt that runs off the edge</span>...</div>
		</div>
	`)
	c := doc.Find("[data-generation-id]").First()
	_, ok := New(Selectors{}).extractPrompt(c)
	if !ok {
		t.Fatal("expected the ellipsis-pattern strategy to recover a prompt")
	}
}

func TestExtractPromptLengthRankingFallback(t *testing.T) {
	doc := mustDoc(t, `
		<div data-generation-id="g1">
			<span aria-describedby="t1">03 Sep 2025</span>
			<span aria-describedby="t2">1024x1024</span>
			<span aria-describedby="t3">A genuinely long descriptive prompt about a sunset over mountains</span>
		</div>
	`)
	c := doc.Find("[data-generation-id]").First()
	prompt, ok := New(Selectors{}).extractPrompt(c)
	if !ok {
		t.Fatal("expected length-ranking strategy to succeed")
	}
	if prompt != "A genuinely long descriptive prompt about a sunset over mountains" {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestIsSanePromptFiltersMetadata(t *testing.T) {
	cases := map[string]bool{
		"03 Sep 2025":     false,
		"1024x1024":       false,
		"public":          false,
		"short":           false,
		"a real prompt about a landscape": true,
	}
	for in, want := range cases {
		if got := isSanePrompt(in); got != want {
			t.Errorf("isSanePrompt(%q) = %v, want %v", in, got, want)
		}
	}
}
