package tracker

import (
	"strings"
	"testing"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"
)

func TestRender(t *testing.T) {
	t.Parallel()

	trk := newTestTracker(&fakeSource{}, newFakeStore(), newFakeTransport())
	p := models.Post{
		ID:        "42",
		Topic:     "Patch [3.18] notes",
		URL:       "https://forum/1",
		Timestamp: 1700000000,
		Content:   `<p>Hello</p><img src="//cdn/shot.png">`,
		Account: models.Account{
			Identifier: "dev-1",
			Service:    "rsi",
			Developer:  models.Developer{Nick: "Dev", Group: "CIG"},
		},
	}

	got := trk.Render(p)
	want := &discordgo.MessageEmbed{
		Description: "Hello",
		Color:       2674940,
		Timestamp:   "2023-11-14T22:13:20Z",
		Author: &discordgo.MessageEmbedAuthor{
			Name:    "Dev [CIG]",
			IconURL: "https://i33.servimg.com/u/f33/11/20/17/41/spectr10.png",
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Account: dev-1 | DT#: 42", IconURL: footerIconURL},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Topic", Value: "[Patch (3.18) notes](https://forum/1)", Inline: true},
			{Name: "Published", Value: "2023-11-14 22:13:20 (UTC)", Inline: true},
		},
		Image: &discordgo.MessageEmbedImage{URL: "https://cdn/shot.png"},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("embed mismatch (-got +want):\n%s", diff)
	}
}

func TestRenderUnknownService(t *testing.T) {
	t.Parallel()

	log, hook := testLogger()
	trk := New(&fakeSource{}, newFakeStore(), newFakeTransport(), nil, Config{}, log)
	e := trk.Render(models.Post{ID: "1", Account: models.Account{Identifier: "acc", Service: "Mastodon"}})

	if e.Color != defaultCustomizer.Color || e.Author.Name != "acc" {
		t.Errorf("got color %d and author %q", e.Color, e.Author.Name)
	}
	if last := hook.LastEntry(); last == nil || !strings.Contains(last.Message, "Mastodon") {
		t.Error("unknown service was not logged")
	}
}

func TestTopicLinkFitsField(t *testing.T) {
	t.Parallel()

	link := topicLink(strings.Repeat("t", 2000), "https://forum/1")
	if n := len([]rune(link)); n > maxFieldValue {
		t.Errorf("link is %d characters", n)
	}
	if !strings.HasSuffix(link, "...](https://forum/1)") {
		t.Errorf("unexpected link suffix: %q", link[len(link)-30:])
	}
}
