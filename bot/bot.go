// Package bot owns the Discord session, the slash command registration and
// the scheduled jobs of the relay.
package bot

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"devtracker-bot/api"
	"devtracker-bot/command"
	"devtracker-bot/config"
	"devtracker-bot/database"
	"devtracker-bot/status"
	"devtracker-bot/tracker"
	"devtracker-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Services are the dependencies shared by the handlers and the scheduler.
type Services struct {
	Config    *config.Config
	DB        *database.DB
	API       *api.Client
	Catalog   *tracker.Catalog
	Tracker   *tracker.Tracker
	Transport tracker.Transport
	Monitor   *status.Monitor
	Auth      *utils.Auth
	Log       *logrus.Entry
}

// Bot encapsulates the bot's state.
type Bot struct {
	Session  *discordgo.Session
	Services *Services
	Commands map[string]command.Command

	ctx       context.Context
	cancel    context.CancelFunc
	scheduler *Scheduler
}

// NewSession creates the Discord session. It is not opened yet, so other
// components can be built around it before the gateway connects.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	// Guild create/delete events and the channel cache used for permission checks.
	dg.Identify.Intents = discordgo.IntentsGuilds
	return dg, nil
}

// NewBot creates a Bot around an unopened session.
func NewBot(session *discordgo.Session, services *Services) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		Session:  session,
		Services: services,
		Commands: make(map[string]command.Command),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context is cancelled when the bot stops. Background work started by
// handlers should use it.
func (b *Bot) Context() context.Context {
	return b.ctx
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []command.Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

// Start registers handlers, opens the session, publishes the slash commands
// and starts the scheduled jobs.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	log := b.Services.Log
	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	defs := make([]*discordgo.ApplicationCommand, 0, len(b.Commands))
	for _, cmd := range b.Commands {
		defs = append(defs, cmd.Definition())
	}
	guildIDs := b.Services.Config.Bot.DebugGuildIDs
	if len(guildIDs) == 0 {
		guildIDs = []string{""}
	}
	for _, guildID := range guildIDs {
		// Overwriting drops commands that no longer exist.
		if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, guildID, defs); err != nil {
			log.WithError(err).WithField("guild", guildID).Error("Cannot register slash commands")
		}
	}

	scheduler, err := NewScheduler(b.Services.Config.Tracker, b.Services.Tracker, b.Services.DB, b.Services.Monitor, log.WithField("module", "scheduler"))
	if err != nil {
		b.Session.Close()
		return err
	}
	b.scheduler = scheduler
	b.scheduler.Start(b.ctx)

	log.Info("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop waits for a running refresh to finish and closes the session.
func (b *Bot) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
	b.cancel()
	if b.Session != nil {
		b.Session.Close()
	}
	b.Services.Log.Info("Bot stopped gracefully.")
}

// Run starts the bot and blocks until SIGINT or SIGTERM.
func Run(b *Bot, registerHandlers func(*Bot), commands []command.Command) error {
	b.RegisterCommands(commands)

	if err := b.Start(registerHandlers); err != nil {
		return fmt.Errorf("error starting bot: %w", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	b.Stop()
	return nil
}
