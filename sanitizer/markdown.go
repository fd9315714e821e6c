package sanitizer

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t\r\f]+`)
	blankLines = regexp.MustCompile(`\n\s*\n`)
	quoteBlank = regexp.MustCompile(`^(?:>\s*)+$`)
	bareURL    = regexp.MustCompile(`https?://\S+`)
)

// markdownEscaper keeps literal emphasis characters of the post from being
// read as formatting.
var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`)

// converter renders an HTML tree as Discord-flavoured markdown.
type converter struct {
	keepNewlines bool
	listDepth    int
}

func (c *converter) render(root *html.Node) string {
	return tidy(c.node(root))
}

// tidy squashes blank lines and trims the result.
func tidy(md string) string {
	md = blankLines.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(collapseQuoteBlanks(md))
}

func (c *converter) children(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		b.WriteString(c.node(ch))
	}
	return b.String()
}

func (c *converter) node(n *html.Node) string {
	switch n.Type {
	case html.DocumentNode:
		return c.children(n)
	case html.TextNode:
		return c.text(n.Data)
	case html.ElementNode:
	default:
		return ""
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Img:
		return ""
	case atom.Br:
		return "\n"
	case atom.Hr:
		return "\n\n"
	case atom.P:
		t := strings.TrimSpace(c.children(n))
		if t == "" {
			return "\n"
		}
		return t + "\n\n"
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		t := strings.TrimSpace(c.children(n))
		if t == "" {
			return ""
		}
		return "**" + t + "**\n\n"
	case atom.Blockquote:
		t := strings.TrimSpace(c.children(n))
		if t == "" {
			return ""
		}
		return "\n" + prefixLines(t, "> ") + "\n\n"
	case atom.B, atom.Strong:
		return wrap(c.children(n), "**")
	case atom.I, atom.Em:
		return wrap(c.children(n), "*")
	case atom.U:
		return wrap(c.children(n), "__")
	case atom.S, atom.Strike, atom.Del:
		return wrap(c.children(n), "~~")
	case atom.Code:
		return wrap(textOf(n), "`")
	case atom.Pre:
		return "\n```\n" + strings.Trim(textOf(n), "\n") + "\n```\n\n"
	case atom.A:
		return c.link(n)
	case atom.Ul, atom.Ol:
		return c.list(n)
	case atom.Li:
		return "- " + strings.TrimSpace(c.children(n)) + "\n"
	}
	return c.children(n)
}

func (c *converter) text(s string) string {
	if !c.keepNewlines {
		s = strings.ReplaceAll(s, "\n", " ")
	}
	return escape(spaceRun.ReplaceAllString(s, " "))
}

// escape backslashes emphasis characters outside of bare URLs.
func escape(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range bareURL.FindAllStringIndex(s, -1) {
		b.WriteString(markdownEscaper.Replace(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(markdownEscaper.Replace(s[last:]))
	return b.String()
}

func (c *converter) link(n *html.Node) string {
	t := c.children(n)
	href := attr(n, "href")
	if strings.TrimSpace(t) == "" {
		return ""
	}
	if href != "" && href == strings.TrimSpace(textOf(n)) {
		return href
	}
	if href == "" {
		return t
	}
	return fmt.Sprintf("[%s](%s)", strings.TrimSpace(t), href)
}

func (c *converter) list(n *html.Node) string {
	c.listDepth++
	indent := strings.Repeat("  ", c.listDepth-1)

	var b strings.Builder
	i := 1
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		bullet := "- "
		if n.DataAtom == atom.Ol {
			bullet = fmt.Sprintf("%d. ", i)
		}
		b.WriteString(indent + bullet + strings.TrimSpace(c.children(li)) + "\n")
		i++
	}
	c.listDepth--

	if c.listDepth > 0 {
		return "\n" + b.String()
	}
	return "\n" + b.String() + "\n"
}

// wrap surrounds the trimmed text with mark, keeping the surrounding
// whitespace outside of it.
func wrap(s, mark string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return s
	}
	lead := s[:strings.Index(s, t)]
	trail := s[len(lead)+len(t):]
	return lead + mark + t + mark + trail
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// collapseQuoteBlanks squashes runs of empty quote lines into a single one.
func collapseQuoteBlanks(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	prevBlank := false
	for _, l := range lines {
		blank := quoteBlank.MatchString(l)
		if blank && prevBlank {
			continue
		}
		prevBlank = blank
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
