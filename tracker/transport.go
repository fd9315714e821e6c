package tracker

import (
	"context"
	"errors"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrForbidden is returned when the bot may not view or post in a destination.
	ErrForbidden = errors.New("missing permissions")
	// ErrNotFound is returned when a guild, channel or thread does not exist
	// or is not reachable by the bot.
	ErrNotFound = errors.New("not found")
	// ErrNoPosts aborts a refresh cycle in which no followed game could be fetched.
	ErrNoPosts = errors.New("no game could be fetched")
)

// Transport delivers rendered posts to the chat platform. Implementations
// report permission and existence problems as ErrForbidden and ErrNotFound.
type Transport interface {
	// Resolve checks that dest belongs to the guild and accepts posts from
	// the bot. The returned destination has the parent of a thread filled in.
	Resolve(ctx context.Context, guildID string, dest models.Destination) (models.Destination, error)
	// Send posts a batch of embeds as a single message.
	Send(ctx context.Context, dest models.Destination, embeds []*discordgo.MessageEmbed) error
	// NotifyOwner sends a direct message to the owner of a guild.
	NotifyOwner(ctx context.Context, guildID, content string) error
}
