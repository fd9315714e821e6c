package sanitizer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func parseBody(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}
	bodies := findAll(doc, atom.Body)
	if len(bodies) != 1 {
		t.Fatalf("expected one body, got %d", len(bodies))
	}
	return bodies[0]
}

func renderChildren(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			t.Fatal(err)
		}
	}
	return b.String()
}

func TestEllipsize(t *testing.T) {
	t.Parallel()

	a, b, c := strings.Repeat("a", 100), strings.Repeat("b", 100), strings.Repeat("c", 100)
	three := "<blockquote><p>" + a + "</p><p>" + b + "</p><p>" + c + "</p></blockquote>"

	cases := map[string]struct {
		in           string
		overflow     int
		want         string
		wantStripped int
	}{
		"no overflow": {
			in:           "<p>intro</p>" + three,
			overflow:     0,
			want:         "<p>intro</p>" + three,
			wantStripped: 0,
		},
		"last paragraph collapsed": {
			in:           "<p>intro</p>" + three,
			overflow:     50,
			want:         "<p>intro</p><blockquote><p>" + a + "</p><p>" + b + "</p><p>[...]</p></blockquote>",
			wantStripped: 95,
		},
		"second pass removes paragraph before ellipsis": {
			in:           three,
			overflow:     150,
			want:         "<blockquote><p>" + a + "</p><p>[...]</p></blockquote>",
			wantStripped: 195,
		},
		"quotes shrink first to last": {
			in:           three + three,
			overflow:     150,
			want:         "<blockquote><p>" + a + "</p><p>[...]</p></blockquote>" + three,
			wantStripped: 195,
		},
		"single paragraph quote collapsed": {
			in:           "<p>intro</p><blockquote>" + a + "</blockquote>",
			overflow:     10,
			want:         "<p>intro</p><blockquote>[...]</blockquote>",
			wantStripped: 95,
		},
		"last quote gives way before leading quote": {
			in:           "<blockquote>" + a + "</blockquote><blockquote>" + b + "</blockquote>",
			overflow:     10,
			want:         "<blockquote>" + a + "</blockquote><blockquote>[...]</blockquote>",
			wantStripped: 95,
		},
		"short quote gives way once earlier quotes are collapsed": {
			in:           "<p>intro</p>" + three + "<blockquote>" + a + "</blockquote><p>outro</p>",
			overflow:     10000,
			want:         "<p>intro</p><blockquote><p>" + a + "</p><p>[...]</p></blockquote><p>outro</p>",
			wantStripped: 95 + 100 + 95 + 5,
		},
		"collapsed quotes are not revisited": {
			in:           three + "<blockquote><p>" + a + "</p><p>" + b + "</p></blockquote>",
			overflow:     10000,
			want:         "<blockquote><p>" + a + "</p><p>[...]</p></blockquote><blockquote><p>" + a + "</p><p>[...]</p></blockquote>",
			wantStripped: 95 + 100 + 95,
		},
		"nested quote paragraphs belong to the inner quote": {
			in:           "<blockquote><p>" + a + "</p><blockquote><p>" + b + "</p><p>" + c + "</p></blockquote></blockquote>",
			overflow:     10,
			want:         "<blockquote><p>" + a + "</p><blockquote>[...]</blockquote></blockquote>",
			wantStripped: 195,
		},
		"no quotes": {
			in:           "<p>" + a + "</p>",
			overflow:     50,
			want:         "<p>" + a + "</p>",
			wantStripped: 0,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			body := parseBody(t, tc.in)
			stripped := ellipsize(body, tc.overflow)
			if stripped != tc.wantStripped {
				t.Errorf("stripped = %d, want %d", stripped, tc.wantStripped)
			}
			if diff := cmp.Diff(renderChildren(t, body), tc.want); diff != "" {
				t.Errorf("tree mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestEllipsizeStopsAsSoonAsEnough(t *testing.T) {
	t.Parallel()

	var in strings.Builder
	for i := 0; i < 5; i++ {
		in.WriteString("<blockquote><p>" + strings.Repeat("x", 50) + "</p><p>" + strings.Repeat("y", 50) + "</p></blockquote>")
	}
	body := parseBody(t, in.String())

	stripped := ellipsize(body, 60)
	if stripped < 60 {
		t.Fatalf("stripped = %d, want at least 60", stripped)
	}
	// Two collapsed paragraphs are enough, the other quotes stay intact.
	if got := strings.Count(renderChildren(t, body), Ellipsis); got != 2 {
		t.Errorf("got %d ellipses, want 2", got)
	}
}
