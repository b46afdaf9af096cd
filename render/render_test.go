package render

import (
	"strings"
	"testing"
)

func TestHTML_BasicFormatting(t *testing.T) {
	out, err := HTML("# Title\n\nSome **bold** and a [link](https://example.com).")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h1", "Title", "<strong>bold</strong>", `href="https://example.com"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHTML_StripsScripts(t *testing.T) {
	out, err := HTML("hi <script>alert(1)</script> there\n\n<img src=x onerror=alert(1)>")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "<script") || strings.Contains(out, "onerror") {
		t.Errorf("unsafe markup survived: %s", out)
	}
	if !strings.Contains(out, "hi") || !strings.Contains(out, "there") {
		t.Errorf("text content lost: %s", out)
	}
}

func TestHTML_CodeAndLists(t *testing.T) {
	out, err := HTML("- one\n- two\n\n`inline` and:\n\n```\nblock\n```")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<ul>", "<li>one</li>", "<code>inline</code>", "block"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHTML_BlockquotesKept(t *testing.T) {
	out, err := HTML("> important note")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<blockquote>") {
		t.Errorf("blockquote lost: %s", out)
	}
}
