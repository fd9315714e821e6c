package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	channelPerms int64 = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks
	threadPerms  int64 = discordgo.PermissionViewChannel | discordgo.PermissionSendMessagesInThreads | discordgo.PermissionEmbedLinks
)

// DiscordTransport is the Transport backed by a discordgo session.
type DiscordTransport struct {
	s   *discordgo.Session
	log *logrus.Entry
}

func NewDiscordTransport(s *discordgo.Session, log *logrus.Entry) *DiscordTransport {
	return &DiscordTransport{s: s, log: log}
}

func (d *DiscordTransport) Resolve(ctx context.Context, guildID string, dest models.Destination) (models.Destination, error) {
	if dest.IsZero() {
		return dest, ErrNotFound
	}
	ch, err := d.channel(ctx, dest.ID)
	if err != nil {
		return dest, err
	}
	if ch.GuildID != guildID {
		return dest, fmt.Errorf("channel %s is not in guild %s: %w", ch.ID, guildID, ErrNotFound)
	}

	// Threads inherit the permission overwrites of their parent.
	permChannel, need := ch.ID, channelPerms
	if ch.IsThread() {
		dest = models.Thread(ch.ID, ch.ParentID)
		permChannel, need = ch.ParentID, threadPerms
	} else {
		dest = models.Channel(ch.ID)
	}

	perms, err := d.s.UserChannelPermissions(d.s.State.User.ID, permChannel, discordgo.WithContext(ctx))
	if err != nil {
		return dest, classifyRESTError(err)
	}
	if perms&need != need {
		return dest, fmt.Errorf("channel %s: %w", ch.ID, ErrForbidden)
	}
	return dest, nil
}

func (d *DiscordTransport) Send(ctx context.Context, dest models.Destination, embeds []*discordgo.MessageEmbed) error {
	if _, err := d.s.ChannelMessageSendEmbeds(dest.ID, embeds, discordgo.WithContext(ctx)); err != nil {
		return classifyRESTError(err)
	}
	return nil
}

func (d *DiscordTransport) NotifyOwner(ctx context.Context, guildID, content string) error {
	guild, err := d.s.State.Guild(guildID)
	if err != nil {
		if guild, err = d.s.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
			return classifyRESTError(err)
		}
	}
	dm, err := d.s.UserChannelCreate(guild.OwnerID, discordgo.WithContext(ctx))
	if err != nil {
		return classifyRESTError(err)
	}
	if _, err := d.s.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx)); err != nil {
		return classifyRESTError(err)
	}
	return nil
}

func (d *DiscordTransport) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := d.s.State.Channel(id); err == nil {
		return ch, nil
	}
	ch, err := d.s.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classifyRESTError(err)
	}
	return ch, nil
}

// classifyRESTError maps Discord REST failures onto ErrForbidden and ErrNotFound.
func classifyRESTError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return err
	}
	switch restErr.Response.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
