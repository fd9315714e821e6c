package tracker

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"
)

func TestBatch(t *testing.T) {
	t.Parallel()

	embed := func(size int) *discordgo.MessageEmbed {
		return &discordgo.MessageEmbed{Description: strings.Repeat("x", size)}
	}
	repeat := func(n, size int) []*discordgo.MessageEmbed {
		var out []*discordgo.MessageEmbed
		for i := 0; i < n; i++ {
			out = append(out, embed(size))
		}
		return out
	}

	cases := map[string]struct {
		in   []*discordgo.MessageEmbed
		want []int
	}{
		"empty":             {in: nil, want: nil},
		"count limit":       {in: repeat(12, 10), want: []int{10, 2}},
		"exactly ten":       {in: repeat(10, 10), want: []int{10}},
		"size limit":        {in: repeat(3, 2500), want: []int{2, 1}},
		"exactly the total": {in: repeat(2, 3000), want: []int{2}},
		"oversized alone":   {in: []*discordgo.MessageEmbed{embed(10), embed(7000), embed(10)}, want: []int{1, 1, 1}},
		"twenty one":        {in: repeat(21, 1), want: []int{10, 10, 1}},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got []int
			for _, b := range Batch(tc.in) {
				got = append(got, len(b))
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("batch sizes mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestEmbedLength(t *testing.T) {
	t.Parallel()

	e := &discordgo.MessageEmbed{
		Title:       "ab",
		Description: "héllo",
		Fields:      []*discordgo.MessageEmbedField{{Name: "Topic", Value: "xyz"}},
		Footer:      &discordgo.MessageEmbedFooter{Text: "foot", IconURL: "https://not/counted"},
		Author:      &discordgo.MessageEmbedAuthor{Name: "me"},
	}
	if got, want := embedLength(e), 2+5+5+3+4+2; got != want {
		t.Errorf("embedLength = %d, want %d", got, want)
	}
}
