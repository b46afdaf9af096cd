// Package extract turns raw page HTML into a sanitized markdown digest
// safe to send to an external model provider.
//
// The pipeline: parse → sanitize (tag blocklist, attribute predicate,
// comment removal) → collect structure (title, headings, lists, alt text,
// visible body text) → redact body text → assemble markdown sections.
// Extraction never fails: parse errors degrade to a minimal title-only
// document.
package extract

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/pageai/redact"
)

// NoTitle is the placeholder used when a page has no usable <title>.
const NoTitle = "(No title)"

// Snapshot is the sanitized textual representation of a page at index time.
type Snapshot struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	HTMLHash string `json:"html_hash,omitempty"`
}

// HasMainContent reports whether the digest carries a Main Content
// section, i.e. the page yielded visible body text. assemble writes the
// section header only when body text was found.
func (s *Snapshot) HasMainContent() bool {
	return strings.Contains(s.Markdown, "## Main Content")
}

// heading is one h1–h6 element in document order.
type heading struct {
	level int
	text  string
}

// Extract runs the full pipeline and returns the markdown digest.
// It never returns an empty string.
func Extract(rawHTML string) string {
	return Page(rawHTML).Markdown
}

// Page runs the full pipeline and returns the snapshot for storage.
func Page(rawHTML string) *Snapshot {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return fallback(rawHTML)
	}

	title := findTitle(doc)
	clean := sanitize(doc)

	var (
		headings []heading
		lists    [][]string
		alts     []string
	)
	walk(clean, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			if text := collectText(n); text != "" {
				headings = append(headings, heading{level: int(n.Data[1] - '0'), text: text})
			}
		case atom.Ul, atom.Ol:
			if items := listItems(n); len(items) > 0 {
				lists = append(lists, items)
			}
		}
		for _, a := range n.Attr {
			if a.Key == "alt" && strings.TrimSpace(a.Val) != "" {
				alts = append(alts, strings.TrimSpace(a.Val))
			}
		}
		return true
	})

	body := visibleText(findBody(clean))
	if body == "" {
		// Static text walk found nothing; let the markdown converter have a
		// go at the sanitized tree before giving up.
		body = convertFallback(clean)
	}
	body = redact.Redact(body)

	return &Snapshot{
		Title:    title,
		Markdown: assemble(title, headings, lists, alts, body),
		HTMLHash: hashString(rawHTML),
	}
}

// fallback builds the minimal document used when parsing fails outright.
func fallback(rawHTML string) *Snapshot {
	title := crudeTitle(rawHTML)
	md := "# Page Title\n" + title
	return &Snapshot{Title: title, Markdown: md, HTMLHash: hashString(rawHTML)}
}

// walk visits nodes depth-first in document order. Returning false from fn
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// findTitle extracts the <title> text from the unsanitized tree.
func findTitle(doc *html.Node) string {
	var title string
	walk(doc, func(n *html.Node) bool {
		if title != "" {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return false
		}
		return true
	})
	return title
}

// findBody locates the <body> element, falling back to the whole tree.
func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	walk(doc, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return false
		}
		return true
	})
	if body == nil {
		return doc
	}
	return body
}

// collectText gathers all text in a subtree, space-joined.
func collectText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		return true
	})
	return sb.String()
}

// visibleText gathers text like collectText but skips subtrees hidden by
// inline display:none or visibility:hidden styles.
func visibleText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(n *html.Node) bool {
		if isHidden(n) {
			return false
		}
		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		return true
	})
	return sb.String()
}

// listItems returns the text of every <li> under a list element.
func listItems(list *html.Node) []string {
	var items []string
	walk(list, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.Li {
			if text := collectText(n); text != "" {
				items = append(items, text)
			}
			return false
		}
		return true
	})
	return items
}

// crudeTitle pulls a title out of unparseable markup with a plain scan.
func crudeTitle(rawHTML string) string {
	lower := strings.ToLower(rawHTML)
	start := strings.Index(lower, "<title")
	if start < 0 {
		return NoTitle
	}
	open := strings.IndexByte(rawHTML[start:], '>')
	if open < 0 {
		return NoTitle
	}
	rest := rawHTML[start+open+1:]
	end := strings.Index(strings.ToLower(rest), "</title>")
	if end < 0 {
		return NoTitle
	}
	title := strings.TrimSpace(rest[:end])
	if title == "" {
		return NoTitle
	}
	return title
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
