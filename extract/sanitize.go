package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedTags lists elements removed with their entire subtree. Declarative
// counterpart of the imperative query-and-remove pass a DOM-based sanitizer
// would do.
var droppedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Applet:   true,
	atom.Form:     true,
	atom.Input:    true,
	atom.Textarea: true,
	atom.Select:   true,
	atom.Meta:     true,
	atom.Link:     true,
}

// sensitiveAttrWords flags attributes whose name hints at credentials or
// personal data. Matched as substrings, like the class/id heuristics they
// guard against.
var sensitiveAttrWords = []string{
	"password", "email", "phone", "credit", "card", "ssn", "social",
	"account", "user", "login", "secret", "private", "personal", "confidential",
}

// dropAttr reports whether an attribute must not survive sanitization.
func dropAttr(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "data-") || strings.HasPrefix(name, "aria-") {
		return true
	}
	for _, w := range sensitiveAttrWords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// sanitize returns a new tree with dropped tags, comments, and sensitive
// attributes removed. The input tree is never mutated.
func sanitize(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	switch n.Type {
	case html.CommentNode:
		return nil
	case html.ElementNode:
		if droppedTags[n.DataAtom] {
			return nil
		}
	}

	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	for _, a := range n.Attr {
		if !dropAttr(a.Key) {
			out.Attr = append(out.Attr, a)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if sc := sanitize(c); sc != nil {
			out.AppendChild(sc)
		}
	}
	return out
}

var hiddenStylePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)display\s*:\s*none`),
	regexp.MustCompile(`(?i)visibility\s*:\s*hidden`),
}

// isHidden reports whether an element carries an inline style that hides it.
func isHidden(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "style" {
			for _, pat := range hiddenStylePatterns {
				if pat.MatchString(a.Val) {
					return true
				}
			}
		}
	}
	return false
}
