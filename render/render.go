// Package render converts answer markdown into sanitized HTML for display
// surfaces. Rendering and sanitization are a single call so no caller can
// accidentally emit unsanitized provider output.
package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// UGC policy: formatting, links, and code stay; scripts and event
// handlers are stripped. Provider output is untrusted input.
var policy = bluemonday.UGCPolicy()

// HTML renders markdown to sanitized HTML.
func HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}
