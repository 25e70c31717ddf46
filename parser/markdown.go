package parser

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// newMarkdownConverter builds the shared, goroutine-safe Converter used for
// per-section Markdown output:
//
//   - base plugin: strips script, style, iframe, noscript, head, meta, link,
//     input, textarea, and HTML comments.
//   - commonmark plugin: standard Markdown rendering (headings, lists,
//     links, code blocks, emphasis, blockquotes).
//   - table plugin: keeps table structure with minimal cell padding, which
//     trims table output considerably without hurting readability.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// sectionMarkdown renders section markup as Markdown, resolving relative
// links and images against the page URL. A conversion failure degrades to
// an empty string; it never fails the parse.
func (p *Parser) sectionMarkdown(sectionHTML, pageURL string) string {
	md, err := p.md.ConvertString(sectionHTML, converter.WithDomain(pageURL))
	if err != nil {
		slog.Debug("markdown conversion failed", "url", pageURL, "error", err)
		return ""
	}
	return strings.TrimSpace(md)
}
