package sanitizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/kyokomi/emoji/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestSanitizer() (*Sanitizer, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(logrus.NewEntry(logger)), hook
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		content string
		origin  string
		want    string
		wantImg string
	}{
		"headings and paragraphs": {
			content: "<h1>Patch 3.18</h1><p>Hello <b>world</b></p><p>Second</p>",
			origin:  "rsi",
			want:    "**Patch 3.18**\n\nHello **world**\n\nSecond",
		},
		"inline formatting and links": {
			content: `<p><em>soon</em> see <a href="https://example.com/notes">the notes</a></p>`,
			origin:  "Discourse",
			want:    "*soon* see [the notes](https://example.com/notes)",
		},
		"blockquote": {
			content: "<p>Intro</p><blockquote><p>Line one</p><p>Line two</p></blockquote><p>Outro</p>",
			origin:  "Discourse",
			want:    "Intro\n\n> Line one\n> \n> Line two\n\nOutro",
		},
		"newlines dropped": {
			content: "<p>a</p>\n<p>b</p>\n",
			origin:  "Reddit",
			want:    "a\n\nb",
		},
		"newlines kept for twitter": {
			content: "Line one\nLine two",
			origin:  "Twitter",
			want:    "Line one\nLine two",
		},
		"rsi quote author on its own line": {
			content: `<blockquote><div class="quoteauthor">Dev said:</div>Quoted text</blockquote>`,
			origin:  "rsi",
			want:    "> Dev said:\n> \n> Quoted text",
		},
		"steam quote author on its own line": {
			content: `<blockquote><div class="bb_quoteauthor">Dev said:</div>Quoted text</blockquote>`,
			origin:  "Steam",
			want:    "> Dev said:\n> \n> Quoted text",
		},
		"quote author left alone elsewhere": {
			content: `<blockquote><div class="quoteauthor">Dev said:</div>Quoted text</blockquote>`,
			origin:  "Discourse",
			want:    "> Dev said:Quoted text",
		},
		"twitter attribution": {
			content: `<p>Look</p><blockquote><a href="https://twitter.com/dev">@dev</a><p>Tweet text</p></blockquote>`,
			origin:  "Twitter",
			want:    "Look\n\n> Originally posted by [@dev](https://twitter.com/dev)\n> \n> Tweet text",
		},
		"lists": {
			content: "<ul><li>one</li><li>two</li></ul><ol><li>first</li></ol>",
			origin:  "Discourse",
			want:    "- one\n- two\n\n1. first",
		},
		"images stripped and picked": {
			content: `<p>a</p><img src="//cdn/icon_smile.gif"><img src="//cdn/shot.png"><img src="https://cdn/emoji_icon.gif">`,
			origin:  "Discourse",
			want:    "a",
			wantImg: "https://cdn/shot.png",
		},
		"only icons": {
			content: `<p>a <img src="https://cdn/icons/wave.gif"></p>`,
			origin:  "Discourse",
			want:    "a",
		},
		"emphasis characters escaped": {
			content: "<p>use *args and my_var_name and 2*3*4</p>",
			origin:  "Discourse",
			want:    `use \*args and my\_var\_name and 2\*3\*4`,
		},
		"code and urls left unescaped": {
			content: `<p><code>my_var*2</code> at https://example.com/a_b and <a href="https://example.com/c_d">https://example.com/c_d</a></p>`,
			origin:  "Discourse",
			want:    "`my_var*2` at https://example.com/a_b and https://example.com/c_d",
		},
		"link text escaped": {
			content: `<p><a href="https://example.com/notes">read_me</a></p>`,
			origin:  "Reddit",
			want:    `[read\_me](https://example.com/notes)`,
		},
		"plain text body keeps its lines": {
			content: "first line\nsecond line",
			origin:  "Reddit",
			want:    "first line\nsecond line",
		},
		"scripts dropped": {
			content: "<p>a</p><script>alert(1)</script>",
			origin:  "Discourse",
			want:    "a",
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, _ := newTestSanitizer()
			got, img := s.Sanitize(tc.content, tc.origin)
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("body mismatch (-got +want):\n%s", diff)
			}
			if img != tc.wantImg {
				t.Errorf("image = %q, want %q", img, tc.wantImg)
			}
		})
	}
}

func TestSanitizeShrinksQuotesFirst(t *testing.T) {
	t.Parallel()

	x, y, z := strings.Repeat("x", 2000), strings.Repeat("y", 2000), strings.Repeat("z", 2000)
	content := "<p>Intro</p><blockquote><p>" + x + "</p><p>" + y + "</p><p>" + z + "</p></blockquote><p>Outro</p>"

	s, _ := newTestSanitizer()
	got, _ := s.Sanitize(content, "Discourse")

	if n := utf8.RuneCountInString(got); n > MaxDescription {
		t.Fatalf("got %d characters, want at most %d", n, MaxDescription)
	}
	want := "Intro\n\n> " + x + "\n> \n> " + y + "\n> \n> [...]\n\nOutro"
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("body mismatch (-got +want):\n%s", diff)
	}
}

func TestSanitizeHardTruncation(t *testing.T) {
	t.Parallel()

	s, _ := newTestSanitizer()
	got, _ := s.Sanitize("<p>"+strings.Repeat("é", 5000)+"</p>", "Discourse")

	if n := utf8.RuneCountInString(got); n > MaxDescription {
		t.Fatalf("got %d characters, want at most %d", n, MaxDescription)
	}
	if !strings.HasSuffix(got, "...\n\n[...]") {
		t.Errorf("got suffix %q", got[len(got)-20:])
	}
	if want := strings.Repeat("é", MaxDescription-15); !strings.HasPrefix(got, want) {
		t.Error("leading text was not kept")
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`<p>Look</p><blockquote><a href="https://twitter.com/dev">@dev</a><p>Tweet text</p></blockquote>`,
		"<p>" + strings.Repeat("a", 5000) + "</p>",
		"<p>first</p><p>second</p>",
		"<p>Intro</p><blockquote><p>Line one</p><p>Line two</p></blockquote><p>Outro</p>",
		"<h1>Patch 3.18</h1><ul><li>one</li><li>two</li></ul>",
		"<p>use *args and my_var_name, see https://example.com/a_b</p>",
		"<p>a <b>bold</b> <i>move</i></p>",
		"plain words",
		"line one\n\n\nline two",
	}
	s, _ := newTestSanitizer()
	for _, origin := range []string{"Twitter", "Discourse", "rsi", "Reddit"} {
		for _, in := range inputs {
			once, _ := s.Sanitize(in, origin)
			twice, _ := s.Sanitize(once, origin)
			if diff := cmp.Diff(twice, once); diff != "" {
				t.Errorf("%s: second pass changed output of %.40q (-got +want):\n%s", origin, in, diff)
			}
		}
	}
}

func TestSanitizeEmoji(t *testing.T) {
	t.Parallel()

	s, hook := newTestSanitizer()

	medal := emoji.CodeMap()[":1st_place_medal:"]
	if medal == "" {
		t.Fatal("emoji table has no first place medal")
	}
	got, _ := s.Sanitize("<p>Winner :first_place_medal:</p>", "Discourse")
	if want := "Winner " + medal; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got, _ = s.Sanitize("<p>Hi :not_an_emoji_at_all: at 10:30:00</p>", "Discourse")
	if want := `Hi :not\_an\_emoji\_at\_all: at 10:30:00`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, ":not_an_emoji_at_all:") {
			warned = true
			if strings.Contains(e.Message, ":30:") {
				t.Errorf("timestamp reported as emoji: %q", e.Message)
			}
		}
	}
	if !warned {
		t.Error("unsupported shortcode was not logged")
	}
}
