// Package handlers answers the gateway events and the dt-* slash commands.
package handlers

import (
	"context"
	"fmt"
	"time"

	"devtracker-bot/bot"
	"devtracker-bot/command"
	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// commandTimeout bounds the work behind a single command reply.
const commandTimeout = 30 * time.Second

// Handler answers interactions using the bot services.
type Handler struct {
	svc    *bot.Services
	ctx    context.Context
	log    *logrus.Entry
	routes map[string]func(context.Context, request) reply
}

func NewHandler(ctx context.Context, svc *bot.Services) *Handler {
	h := &Handler{svc: svc, ctx: ctx, log: svc.Log.WithField("module", "handlers")}
	h.routes = map[string]func(context.Context, request) reply{
		command.Help:         h.help,
		command.Config:       h.config,
		command.Follow:       h.follow,
		command.Unfollow:     h.unfollow,
		command.SetChannel:   h.setChannel,
		command.UnsetChannel: h.unsetChannel,
		command.Allowlist:    h.list,
		command.Ignorelist:   h.list,
		command.URLFilter:    h.urlFilter,
		command.Stats:        h.stats,
	}
	return h
}

// Register all handlers to the bot.
func Register(b *bot.Bot) {
	h := NewHandler(b.Context(), b.Services)

	b.Session.AddHandler(h.InteractionCreate)
	b.Session.AddHandler(h.GuildCreate)
	b.Session.AddHandler(h.GuildDelete)

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		h.log.Infof("Logged in as: %v (%d guilds)", s.State.User.Username, len(r.Guilds))
	})
}

// request is a parsed command invocation.
type request struct {
	Command string
	Sub     string
	GuildID string
	UserID  string
	Options map[string]string
	// Channel is the resolved channel option, if any.
	Channel models.Destination

	CanManage bool
	Members   int
	Latency   time.Duration
}

// reply is what a command answers. After, when set, runs once the reply has
// been sent, with a context bound to the bot lifetime.
type reply struct {
	content string
	embeds  []*discordgo.MessageEmbed
	after   func(ctx context.Context)
}

func textf(format string, args ...any) reply {
	return reply{content: fmt.Sprintf(format, args...)}
}
