package sanitizer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func findAll(root *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// paragraphs returns the <p> elements whose closest enclosing blockquote is bq.
func paragraphs(bq *html.Node) []*html.Node {
	var ps []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Blockquote:
				continue
			case atom.P:
				ps = append(ps, c)
			}
			walk(c)
		}
	}
	walk(bq)
	return ps
}

func remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func setText(n *html.Node, s string) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

func insertAfter(ref *html.Node, nodes ...*html.Node) {
	if ref.Parent == nil {
		return
	}
	next := ref.NextSibling
	for _, n := range nodes {
		ref.Parent.InsertBefore(n, next)
	}
}

func insertBefore(ref *html.Node, n *html.Node) {
	if ref.Parent != nil {
		ref.Parent.InsertBefore(n, ref)
	}
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
