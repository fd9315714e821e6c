package tracker

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
)

const (
	footerIconURL   = "https://i33.servimg.com/u/f33/11/20/17/41/clipar10.png"
	publishedLayout = "2006-01-02 15:04:05"
	maxFieldValue   = 1024
)

type customizer struct {
	IconURL string
	Color   int
}

var defaultCustomizer = customizer{IconURL: footerIconURL, Color: 7506394}

// customizers gives every service its own color and author icon.
var customizers = map[string]customizer{
	"BattleNet":           {"http://assets.stickpng.com/images/6234b05b5c8816c7bbc9d99a.png", 823295},
	"BungieNet":           {"https://i.redd.it/z2edz6txf7351.png", 3815996},
	"Discourse":           {"https://i33.servimg.com/u/f33/11/20/17/41/discou10.png", 16775598},
	"Instagram":           {"https://i33.servimg.com/u/f33/11/20/17/41/132px-10.png", 14563174},
	"InvisionPowerBoard":  {"https://i33.servimg.com/u/f33/11/20/17/41/273-2710.png", 10070709},
	"MiggyRSS":            {"https://i33.servimg.com/u/f33/11/20/17/41/256px-10.png", 16753920},
	"Reddit":              {"https://seeklogo.com/images/R/reddit-logo-23F13F6A6A-seeklogo.com.png", 16729344},
	"rsi":                 {"https://i33.servimg.com/u/f33/11/20/17/41/spectr10.png", 2674940},
	"RSS":                 {"https://i33.servimg.com/u/f33/11/20/17/41/256px-10.png", 16753920},
	"Twitter":             {"https://assets.stickpng.com/images/580b57fcd9996e24bc43c53e.png", 5615086},
	"SimpleMachinesForum": {"https://i33.servimg.com/u/f33/11/20/17/41/273-2710.png", 10070709},
	"Steam":               {"https://cdn.freebiesupply.com/images/large/2x/steam-logo-black-transparent.png", 0},
	"SteamFeed":           {"https://cdn.freebiesupply.com/images/large/2x/steam-logo-black-transparent.png", 0},
}

// Render builds the embed of a post.
func (t *Tracker) Render(p models.Post) *discordgo.MessageEmbed {
	service := p.Account.Service
	description, image := t.sanitizer.Sanitize(p.Content, service)

	c, ok := customizers[service]
	if !ok {
		t.log.Warnf("%s not found in customizers", service)
		c = defaultCustomizer
	}

	author := p.Account.Developer.Nick
	if author == "" {
		author = p.Account.Identifier
	}
	if g := p.Account.Developer.Group; g != "" {
		author = fmt.Sprintf("%s [%s]", author, g)
	}

	e := &discordgo.MessageEmbed{
		Description: description,
		Color:       c.Color,
		Timestamp:   p.Published().Format(time.RFC3339),
		Author:      &discordgo.MessageEmbedAuthor{Name: author, IconURL: c.IconURL},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Account: %s | DT#: %s", p.Account.Identifier, p.ID),
			IconURL: footerIconURL,
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Topic", Value: topicLink(p.Topic, p.URL), Inline: true},
			{Name: "Published", Value: p.Published().Format(publishedLayout) + " (UTC)", Inline: true},
		},
	}
	if image != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: image}
	}
	return e
}

func topicLink(topic, url string) string {
	topic = strings.NewReplacer("[", "(", "]", ")").Replace(topic)
	budget := maxFieldValue - utf8.RuneCountInString(url) - 4
	if r := []rune(topic); len(r) > budget && budget > 3 {
		topic = string(r[:budget-3]) + "..."
	}
	return fmt.Sprintf("[%s](%s)", topic, url)
}

// embedLength counts the characters of an embed the way Discord applies its
// per-message limit.
func embedLength(e *discordgo.MessageEmbed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	if e.Footer != nil {
		n += utf8.RuneCountInString(e.Footer.Text)
	}
	if e.Author != nil {
		n += utf8.RuneCountInString(e.Author.Name)
	}
	return n
}
