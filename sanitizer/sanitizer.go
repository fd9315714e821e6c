// Package sanitizer turns the HTML body of a tracked post into markdown that
// fits an embed description.
package sanitizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxDescription is the longest description an embed accepts.
const MaxDescription = 4096

const (
	truncated  = "...\n\n" + Ellipsis
	truncateAt = MaxDescription - 15
)

// Sanitizer converts post bodies. The zero value is not usable, use New.
type Sanitizer struct {
	log *logrus.Entry
}

func New(log *logrus.Entry) *Sanitizer {
	return &Sanitizer{log: log}
}

// Sanitize converts content, as published on origin, into markdown of at most
// MaxDescription characters. It also returns the image to show alongside the
// text, or an empty string when the body has none worth showing.
func (s *Sanitizer) Sanitize(content, origin string) (string, string) {
	content, unsupported := emojize(content)
	if len(unsupported) > 0 {
		s.log.WithField("origin", origin).Warnf("Unsupported emoji shortcodes: %s", strings.Join(unsupported, ", "))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		s.log.WithError(err).Warn("Could not parse post body, sending it as plain text")
		return truncate(tidy(content)), ""
	}
	// Bodies without any markup, sanitized ones included, are already text.
	if doc.Find("body *").Length() == 0 {
		return truncate(tidy(doc.Find("body").Text())), ""
	}

	keepNewlines := origin == "Twitter"
	if !keepNewlines {
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(content, "\n", "")))
		if err != nil {
			s.log.WithError(err).Warn("Could not parse post body, sending it as plain text")
			return truncate(tidy(content)), ""
		}
	}
	fixQuotes(doc, origin)

	root := doc.Nodes[0]
	if body := doc.Find("body"); body.Length() > 0 {
		root = body.Get(0)
	}

	conv := &converter{keepNewlines: keepNewlines}
	md := conv.render(root)
	if overflow := runeLen(md) - MaxDescription; overflow > 0 {
		stripped := ellipsize(root, overflow)
		s.log.Debugf("%d characters stripped from quotes (overflow %d)", stripped, overflow)
		md = conv.render(root)
	}

	return truncate(md), imageURL(doc)
}

// fixQuotes gives quote attributions their own line, each forum marking
// them up its own way.
func fixQuotes(doc *goquery.Document, origin string) {
	var selector string
	switch origin {
	case "rsi", "Bungie.net", "BungieNet":
		selector = "div.quoteauthor"
	case "Reddit", "Steam":
		selector = "div.bb_quoteauthor"
	case "Twitter":
		doc.Find("blockquote").Each(func(_ int, bq *goquery.Selection) {
			author := bq.Get(0).FirstChild
			if author == nil {
				return
			}
			insertBefore(author, &html.Node{Type: html.TextNode, Data: "Originally posted by "})
			insertAfter(author, element(atom.Br), element(atom.Br))
		})
		return
	default:
		return
	}

	doc.Find(selector).Each(func(_ int, author *goquery.Selection) {
		insertAfter(author.Get(0), element(atom.Br), element(atom.Br))
	})
}

// imageURL picks the last image of the body, skipping animated icons.
func imageURL(doc *goquery.Document) string {
	imgs := doc.Find("img")
	for i := imgs.Length() - 1; i >= 0; i-- {
		src, _ := imgs.Eq(i).Attr("src")
		if src == "" {
			continue
		}
		if strings.Contains(src, "icon") && strings.Contains(src, ".gif") {
			continue
		}
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		return src
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescription {
		return s
	}
	return string(r[:truncateAt]) + truncated
}
