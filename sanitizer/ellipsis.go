package sanitizer

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Ellipsis replaces text removed from quotes.
const Ellipsis = "[...]"

// ellipsize shrinks the blockquotes under root until at least overflow
// characters are stripped or no blockquote is left, and returns the number
// of characters stripped.
//
// Quotes are shrunk first to last. The current quote loses its trailing
// paragraphs to an ellipsis until only its first paragraph and the ellipsis
// remain, then the next quote is taken. A quote with fewer than two
// paragraphs makes the last quote of the document give way instead: it is
// collapsed into a bare ellipsis, or dropped if it already is one. Leading
// content is the last to go.
func ellipsize(root *html.Node, overflow int) int {
	quotes := findAll(root, atom.Blockquote)

	var (
		stripped int
		altered  *html.Node
		i        int
	)
	for i < len(quotes) && stripped < overflow {
		bq := quotes[i]
		if ps := paragraphs(bq); len(ps) >= 2 {
			stripped += collapseLastParagraph(ps)
			altered = bq
			if len(paragraphs(bq)) <= 2 {
				i++
			}
			continue
		}

		// The last quote in document order never contains another quote.
		last := quotes[len(quotes)-1]
		if isEllipsis(last) {
			stripped += runeLen(Ellipsis)
			remove(last)
			quotes = quotes[:len(quotes)-1]
			if altered == last {
				altered = nil
			}
			continue
		}
		stripped += max(0, runeLen(textOf(last))-runeLen(Ellipsis))
		setText(last, Ellipsis)
		altered = last
	}

	if altered != nil {
		ensureEllipsis(altered)
	}
	return stripped
}

func collapseLastParagraph(ps []*html.Node) int {
	last := ps[len(ps)-1]
	if isEllipsis(last) {
		prev := ps[len(ps)-2]
		n := runeLen(textOf(prev))
		remove(prev)
		return n
	}
	n := max(0, runeLen(textOf(last))-runeLen(Ellipsis))
	setText(last, Ellipsis)
	return n
}

func isEllipsis(n *html.Node) bool {
	return strings.TrimSpace(textOf(n)) == Ellipsis
}

// ensureEllipsis makes the final paragraph of bq end with the ellipsis.
func ensureEllipsis(bq *html.Node) {
	target := bq
	if ps := paragraphs(bq); len(ps) > 0 {
		target = ps[len(ps)-1]
	}
	if strings.HasSuffix(strings.TrimSpace(textOf(target)), Ellipsis) {
		return
	}
	if c := target.FirstChild; c != nil && c.NextSibling == nil && c.Type == html.TextNode {
		c.Data = Ellipsis
		return
	}
	target.AppendChild(&html.Node{Type: html.TextNode, Data: Ellipsis})
}
