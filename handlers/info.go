package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"devtracker-bot/database"
	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
)

// Embed colors.
const (
	colorDefault = 7506394
	colorLinks   = 6013150
	colorError   = 14242639
	colorWarning = 15773006
	colorAllowed = 16250871
	colorIgnored = 2698028
)

const maxFieldValue = 1024

const separator = "- - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - -"

const helpText = "**Specific channel for each game**\n" +
	"```/dt-set-channel game channel: #sc-devtracker game: Star Citizen```\n" +
	"**Single channel for all games**\n" +
	"```/dt-set-channel default channel: #devtracker```\n" +
	"Add some games:\n" +
	"```\n/dt-follow game: Star Citizen\n/dt-follow game: Elite: Dangerous\n```\n" +
	"All posts from __Star Citizen__ and __Elite: Dangerous__ will then be sent to the __#devtracker__ channel.\n\n" +
	"**Filtering posts**\n" +
	"`/dt-allowlist`: Only posts matching the accounts or services in this list will be sent.\n" +
	"`/dt-ignorelist`: Posts matching the accounts or services in this list will be ignored.\n" +
	"`/dt-urlfilter`: Only send posts whose URL matches, or route them to another channel.\n\n" +
	"__Notes__:\n" +
	"- Each `allowlist` or `ignorelist` is game-specific, so you can have different filters for each game.\n" +
	"- You can use both at the same time, but the `allowlist` will take precedence over the `ignorelist`.\n" +
	"- You'll find the `account_id` in the footer of each post.\n\n" +
	"**Get current configuration**\n" +
	"```/dt-config```"

const helpLinks = "- Detailed [commands](https://github.com/s0me-1/devtracker-bot#commands) page.\n" +
	"- DevTracker Official [Discord Server](https://discord.gg/QN9uveFYXX).\n" +
	"- DevTracker [Github](https://github.com/s0me-1/devtracker-bot) page."

func (h *Handler) help(_ context.Context, req request) reply {
	if !req.CanManage {
		return reply{embeds: []*discordgo.MessageEmbed{{
			Title:       "❌ Permission Error",
			Description: "Sorry, you don't have enough permissions on this server to manage this bot.",
			Color:       colorError,
		}}}
	}
	return reply{embeds: []*discordgo.MessageEmbed{
		{Description: helpText, Color: colorDefault},
		{Title: "Need more help?", Description: helpLinks, Color: colorLinks},
	}}
}

// apiStatus formats the API health as a field name and value.
func (h *Handler) apiStatus(ctx context.Context) (string, string) {
	code, latency, err := h.svc.API.Status(ctx)
	emoji := "✅"
	if err != nil || code != 200 {
		emoji = "❌"
	}
	return fmt.Sprintf("API Status - %s (%d)", emoji, code), fmt.Sprintf("%dms", latency.Milliseconds())
}

func (h *Handler) config(ctx context.Context, req request) reply {
	embeds, err := h.configEmbeds(ctx, req.GuildID)
	if err != nil {
		h.log.WithError(err).Error("Cannot build the configuration")
		return textf(storeErrorMessage)
	}
	return reply{embeds: embeds}
}

func (h *Handler) configEmbeds(ctx context.Context, guildID string) ([]*discordgo.MessageEmbed, error) {
	db := h.svc.DB
	names := h.svc.Catalog.Names(ctx)
	gameName := func(id string) string {
		if n := names[id]; n != "" {
			return n
		}
		return id
	}

	mainID, err := db.GetMainChannel(ctx, guildID)
	if err != nil {
		return nil, err
	}
	follows, err := db.GetGuildFollows(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sort.Slice(follows, func(i, j int) bool { return gameName(follows[i].GameID) < gameName(follows[j].GameID) })

	channel := "Not set"
	var permError string
	if mainID != "" {
		dest := models.Channel(mainID)
		channel = dest.Mention()
		if w := h.permissionWarning(ctx, guildID, dest); w != "" {
			permError = fmt.Sprintf("Default channel %s: %s", dest.Mention(), w)
		}
	}

	statusName, statusValue := h.apiStatus(ctx)
	followPages := pages(h.followLines(ctx, guildID, follows, gameName), maxFieldValue)

	main := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "⚙️ Current config"},
		Description: separator + "\n" + helpLinks + "\n\u200b",
		Color:       colorDefault,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Default Channel", Value: channel, Inline: true},
			{Name: statusName, Value: "[DeveloperTracker.com](https://developertracker.com/)\n" + statusValue, Inline: true},
			{Name: "Last refresh", Value: h.lastRefresh(), Inline: true},
			{Name: "📡 Followed Games", Value: followPages[0]},
		},
	}
	embeds := []*discordgo.MessageEmbed{main}
	for _, page := range followPages[1:] {
		embeds = append(embeds, fieldEmbed("📡 Followed Games", page, colorDefault))
	}
	if permError != "" {
		embeds = append(embeds, &discordgo.MessageEmbed{Title: "❌ Permission Error", Description: permError, Color: colorError})
	}

	var (
		sections   []section
		hasAllowed bool
		hasIgnored bool
	)
	for _, kind := range []database.ListKind{database.Allowed, database.Ignored} {
		accounts, services, err := h.listLines(ctx, kind, guildID, follows, gameName)
		if err != nil {
			return nil, err
		}
		title, color := "🔊 Allowed", colorAllowed
		if kind == database.Ignored {
			title, color = "🔇 Ignored", colorIgnored
		}
		sections = append(sections,
			section{title + " accounts", accounts, color},
			section{title + " services", services, color})
		nonEmpty := len(accounts) > 0 || len(services) > 0
		if kind == database.Allowed {
			hasAllowed = nonEmpty
		} else {
			hasIgnored = nonEmpty
		}
	}
	if hasAllowed && hasIgnored {
		embeds = append(embeds, &discordgo.MessageEmbed{
			Title: "⚠️ Warning !",
			Description: "It seems that you have some **allowlists** alongside ignorelists set up.\n" +
				"Please note that allowlists will **always take precedence** over ignorelists.",
			Color: colorWarning,
		})
	}

	filters, err := h.urlFilterLines(ctx, guildID, follows, gameName)
	if err != nil {
		return nil, err
	}
	sections = append(sections, section{"🔀 URL filters", filters, colorLinks})

	for _, s := range sections {
		if len(s.lines) == 0 {
			continue
		}
		for _, page := range pages(s.lines, maxFieldValue) {
			embeds = append(embeds, fieldEmbed(s.title, page, s.color))
		}
	}
	return embeds, nil
}

type section struct {
	title string
	lines []string
	color int
}

func (h *Handler) followLines(ctx context.Context, guildID string, follows []models.Follow, gameName func(string) string) []string {
	width := 0
	for _, f := range follows {
		width = max(width, utf8.RuneCountInString(gameName(f.GameID)))
	}

	var lines []string
	for _, f := range follows {
		name := gameName(f.GameID)
		line := "`" + name + strings.Repeat(" ", width-utf8.RuneCountInString(name)) + "`  |  "
		if f.ChannelID == "" {
			line += "default"
		} else {
			dest := models.Channel(f.ChannelID)
			line += dest.Mention()
			if w := h.permissionWarning(ctx, guildID, dest); w != "" {
				line += " - **[ERROR]** " + w
			}
		}
		if f.LastPostID != "" {
			line += fmt.Sprintf(" - [%s](https://developertracker.com/%s/?post=%s)", f.LastPostID, f.GameID, f.LastPostID)
		}
		lines = append(lines, line+"\n")
	}
	return lines
}

func (h *Handler) listLines(ctx context.Context, kind database.ListKind, guildID string, follows []models.Follow, gameName func(string) string) (accounts, services []string, err error) {
	for _, f := range follows {
		listed, err := h.svc.DB.GetAccounts(ctx, kind, guildID, f.GameID)
		if err != nil {
			return nil, nil, err
		}
		if len(listed) > 0 {
			accounts = append(accounts, "\n**"+gameName(f.GameID)+"**\n")
			for _, a := range listed {
				accounts = append(accounts, fmt.Sprintf(" - `%s` (%s)\n", a.AccountID, a.ServiceID))
			}
		}

		ids, err := h.svc.DB.GetServices(ctx, kind, guildID, f.GameID)
		if err != nil {
			return nil, nil, err
		}
		if len(ids) > 0 {
			services = append(services, "\n**"+gameName(f.GameID)+"**\n")
			for _, id := range ids {
				services = append(services, " - `"+id+"`\n")
			}
		}
	}
	return accounts, services, nil
}

func (h *Handler) urlFilterLines(ctx context.Context, guildID string, follows []models.Follow, gameName func(string) string) ([]string, error) {
	var lines []string
	for _, f := range follows {
		rules, err := h.svc.DB.GetURLFilters(ctx, guildID, f.GameID)
		if err != nil {
			return nil, err
		}
		if len(rules) == 0 {
			continue
		}
		lines = append(lines, "\n**"+gameName(f.GameID)+"**\n")
		for _, r := range rules {
			target := "only matching posts"
			if !r.IsGlobal() {
				target = "→ " + r.Destination.Mention()
			}
			lines = append(lines, fmt.Sprintf(" - %s: `%s` %s\n", r.ServiceID, strings.Join(r.Patterns(), "`, `"), target))
		}
	}
	return lines, nil
}

func (h *Handler) lastRefresh() string {
	snap := h.svc.Monitor.Snapshot()
	if snap.LastCycle == nil {
		return "Not yet"
	}
	status := "✅"
	if !snap.Healthy {
		status = "❌"
	}
	return fmt.Sprintf("%s <t:%d:R>", status, snap.LastCycle.Started.Unix())
}

func (h *Handler) stats(ctx context.Context, req request) reply {
	follows, err := h.svc.DB.CountFollows(ctx)
	if err != nil {
		h.log.WithError(err).Error("Cannot count follows")
		return textf(storeErrorMessage)
	}
	guilds, err := h.svc.DB.GetGuildIDs(ctx)
	if err != nil {
		h.log.WithError(err).Error("Cannot count guilds")
		return textf(storeErrorMessage)
	}
	statusName, statusValue := h.apiStatus(ctx)

	emb := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "📊 Current Statistics"},
		Description: separator,
		Color:       colorDefault,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎮 Total Follows", Value: fmt.Sprint(follows), Inline: true},
			{Name: "🌐 Total Servers", Value: fmt.Sprint(len(guilds)), Inline: true},
			{Name: "👥 Total Members", Value: fmt.Sprint(req.Members) + "\n\u200b", Inline: true},
			{Name: "Bot Latency", Value: fmt.Sprintf("%dms", req.Latency.Milliseconds()), Inline: true},
			{Name: statusName, Value: statusValue, Inline: true},
		},
	}

	snap := h.svc.Monitor.Snapshot()
	if c := snap.LastCycle; c != nil {
		value := fmt.Sprintf("%d/%d games fetched, %d new posts, %d messages (%d failed) in %s",
			c.Fetched, c.Games, c.NewPosts, c.Messages, c.Failed, c.Duration.Round(time.Millisecond))
		if snap.LastError != "" {
			value += "\n❌ " + snap.LastError
		}
		emb.Fields = append(emb.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Last refresh (%d cycles, %d aborted)", snap.Cycles, snap.Aborted),
			Value: value,
		})
	}
	return reply{embeds: []*discordgo.MessageEmbed{emb}}
}

func fieldEmbed(name, value string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:  color,
		Fields: []*discordgo.MessageEmbedField{{Name: name, Value: value}},
	}
}

// pages joins lines into chunks of at most limit characters. A line longer
// than limit is cut. There is always at least one page.
func pages(lines []string, limit int) []string {
	var out []string
	var b strings.Builder
	n := 0
	for _, line := range lines {
		l := utf8.RuneCountInString(line)
		if l > limit {
			line = string([]rune(line)[:limit])
			l = limit
		}
		if n+l > limit {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
		b.WriteString(line)
		n += l
	}
	if b.Len() > 0 || len(out) == 0 {
		page := b.String()
		if page == "" {
			page = "None"
		}
		out = append(out, page)
	}
	return out
}
