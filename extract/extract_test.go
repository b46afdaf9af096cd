package extract

import (
	"strings"
	"testing"
)

func TestPage_EndToEnd(t *testing.T) {
	html := `<html><head><title>Hi</title></head><body><h1>Welcome</h1><p>Email me at a@b.com</p></body></html>`
	snap := Page(html)

	if snap.Title != "Hi" {
		t.Errorf("Title: got %q, want %q", snap.Title, "Hi")
	}
	md := snap.Markdown
	if !strings.Contains(md, "# Page Title\nHi") {
		t.Errorf("missing title section:\n%s", md)
	}
	if !strings.Contains(md, "# Welcome") {
		t.Errorf("missing heading line:\n%s", md)
	}
	if !strings.Contains(md, "## Main Content") {
		t.Errorf("missing main content section:\n%s", md)
	}
	if !strings.Contains(md, "[EMAIL]") || strings.Contains(md, "a@b.com") {
		t.Errorf("email not redacted:\n%s", md)
	}
	if snap.HTMLHash == "" {
		t.Error("HTMLHash should not be empty")
	}
}

func TestExtract_NeverEmpty(t *testing.T) {
	inputs := []string{
		"",
		"<",
		"<html></html>",
		"not html at all",
		"<html><body><script>alert(1)</script></body></html>",
	}
	for _, in := range inputs {
		if got := Extract(in); strings.TrimSpace(got) == "" {
			t.Errorf("Extract(%q) returned empty output", in)
		}
	}
}

func TestPage_DropsNonContentNodes(t *testing.T) {
	html := `<html><head><title>T</title><meta name="k" content="v"></head><body>
<script>var secret = "hunter2";</script>
<style>.x { color: red }</style>
<noscript>enable js</noscript>
<iframe src="http://evil.example"></iframe>
<form action="/login"><input name="q" value="typed text"><textarea>draft</textarea></form>
<!-- internal build comment -->
<p>visible paragraph</p>
</body></html>`
	md := Page(html).Markdown
	for _, leaked := range []string{"hunter2", "color: red", "enable js", "typed text", "draft", "internal build comment"} {
		if strings.Contains(md, leaked) {
			t.Errorf("non-content text leaked %q:\n%s", leaked, md)
		}
	}
	if !strings.Contains(md, "visible paragraph") {
		t.Errorf("visible text missing:\n%s", md)
	}
}

func TestPage_SkipsHiddenElements(t *testing.T) {
	html := `<html><body>
<div style="display:none">invisible one</div>
<div style="visibility: hidden">invisible two</div>
<div>shown</div>
</body></html>`
	md := Page(html).Markdown
	if strings.Contains(md, "invisible one") || strings.Contains(md, "invisible two") {
		t.Errorf("hidden text extracted:\n%s", md)
	}
	if !strings.Contains(md, "shown") {
		t.Errorf("visible text missing:\n%s", md)
	}
}

func TestPage_HeadingsListsAlts(t *testing.T) {
	html := `<html><head><title>Doc</title></head><body>
<h2>Section</h2><h3>Sub</h3>
<ul><li>alpha</li><li>beta</li></ul>
<ol><li>first</li></ol>
<img src="a.png" alt="logo"><img src="b.png" alt=""><img src="c.png" alt="logo">
<p>body text here</p>
</body></html>`
	md := Page(html).Markdown

	if !strings.Contains(md, "## Page Structure\n## Section\n### Sub") {
		t.Errorf("heading section wrong:\n%s", md)
	}
	if !strings.Contains(md, "### List 1\n- alpha\n- beta") {
		t.Errorf("list 1 wrong:\n%s", md)
	}
	if !strings.Contains(md, "### List 2\n- first") {
		t.Errorf("list 2 wrong:\n%s", md)
	}
	// Empty alts filtered, duplicates kept.
	if !strings.Contains(md, "## Image Alt Text\nlogo | logo") {
		t.Errorf("alt section wrong:\n%s", md)
	}
}

func TestPage_OmitsEmptySections(t *testing.T) {
	html := `<html><head><title>Bare</title></head><body><p>only text</p></body></html>`
	md := Page(html).Markdown
	for _, absent := range []string{"## Page Structure", "## Lists Found", "## Image Alt Text"} {
		if strings.Contains(md, absent) {
			t.Errorf("empty section %q rendered:\n%s", absent, md)
		}
	}
}

func TestDropAttr(t *testing.T) {
	drop := []string{"data-user-id", "aria-label", "data-x", "password-hint", "USERNAME"}
	keep := []string{"href", "src", "alt", "style", "class", "id", "title"}
	for _, name := range drop {
		if !dropAttr(name) {
			t.Errorf("dropAttr(%q) = false, want true", name)
		}
	}
	for _, name := range keep {
		if dropAttr(name) {
			t.Errorf("dropAttr(%q) = true, want false", name)
		}
	}
}

func TestPage_StripsSensitiveAttributes(t *testing.T) {
	html := `<html><body><div data-email="x@y.com" aria-hidden="true" secret-token="abc">ok</div></body></html>`
	snap := Page(html)
	if strings.Contains(snap.Markdown, "x@y.com") || strings.Contains(snap.Markdown, "abc") {
		t.Errorf("attribute values leaked:\n%s", snap.Markdown)
	}
}

func TestCrudeTitle(t *testing.T) {
	if got := crudeTitle("<title>Plain</title>"); got != "Plain" {
		t.Errorf("got %q", got)
	}
	if got := crudeTitle("no markup"); got != NoTitle {
		t.Errorf("got %q", got)
	}
}
