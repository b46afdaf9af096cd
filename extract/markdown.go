package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
)

// assemble renders the digest sections in fixed order. Sections with no
// data are omitted entirely rather than rendered empty.
func assemble(title string, headings []heading, lists [][]string, alts []string, body string) string {
	var sb strings.Builder

	if title != "" {
		fmt.Fprintf(&sb, "# Page Title\n%s\n\n", title)
	}

	if len(headings) > 0 {
		sb.WriteString("## Page Structure\n")
		for _, h := range headings {
			fmt.Fprintf(&sb, "%s %s\n", strings.Repeat("#", h.level), h.text)
		}
		sb.WriteString("\n")
	}

	if len(lists) > 0 {
		sb.WriteString("## Lists Found\n")
		for i, items := range lists {
			fmt.Fprintf(&sb, "### List %d\n", i+1)
			for _, item := range items {
				fmt.Fprintf(&sb, "- %s\n", item)
			}
			sb.WriteString("\n")
		}
	}

	if len(alts) > 0 {
		fmt.Fprintf(&sb, "## Image Alt Text\n%s\n\n", strings.Join(alts, " | "))
	}

	if body != "" {
		fmt.Fprintf(&sb, "## Main Content\n%s", body)
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "# Page Title\n" + NoTitle
	}
	return out
}

// mdConverter converts sanitized HTML subtrees when the plain text walk
// comes back empty (heavily scripted pages, text behind unusual markup).
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// convertFallback renders the sanitized tree back to HTML and runs it
// through the markdown converter. Best effort: any failure yields "".
func convertFallback(clean *html.Node) string {
	if clean == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, clean); err != nil {
		return ""
	}
	out, err := mdConverter.ConvertString(buf.String())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
