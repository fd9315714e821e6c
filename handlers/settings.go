package handlers

import (
	"context"
	"errors"
	"strings"

	"devtracker-bot/command"
	"devtracker-bot/database"
	"devtracker-bot/models"
	"devtracker-bot/tracker"

	"github.com/sirupsen/logrus"
)

const (
	apiDownMessage      = "It seems the DeveloperTracker.com API didn't respond."
	unknownGameMessage  = "`%s` is either an invalid game or unsupported."
	notFollowingMessage = "`%s` isn't in your following list."
	followFirstMessage  = "`%s` isn't in your following list, use `/dt-follow` first."
	storeErrorMessage   = "Something went wrong while saving your settings, please try again later."
)

// findGame looks a game up in the catalog by name or identifier.
func (h *Handler) findGame(ctx context.Context, query string) (models.Game, *reply) {
	game, ok, err := h.svc.Catalog.Find(ctx, query)
	if err != nil {
		h.log.WithError(err).Warn("Games catalog unavailable")
		r := textf(apiDownMessage)
		return models.Game{}, &r
	}
	if !ok {
		r := textf(unknownGameMessage, query)
		return models.Game{}, &r
	}
	return game, nil
}

// followedGame finds a game followed by the guild. Games that vanished from
// the catalog can still be matched by identifier.
func (h *Handler) followedGame(ctx context.Context, guildID, query string) (models.Game, bool, error) {
	follows, err := h.svc.DB.GetGuildFollows(ctx, guildID)
	if err != nil {
		return models.Game{}, false, err
	}
	names := h.svc.Catalog.Names(ctx)
	for _, f := range follows {
		name := names[f.GameID]
		if f.GameID == query || (name != "" && strings.EqualFold(name, query)) {
			if name == "" {
				name = f.GameID
			}
			return models.Game{ID: f.GameID, Name: name}, true, nil
		}
	}
	return models.Game{}, false, nil
}

// requireFollowed is followedGame with the reply to send when the game is
// not followed.
func (h *Handler) requireFollowed(ctx context.Context, guildID, query, missing string) (models.Game, *reply) {
	game, ok, err := h.followedGame(ctx, guildID, query)
	if err != nil {
		h.log.WithError(err).Error("Cannot load follows")
		r := textf(storeErrorMessage)
		return game, &r
	}
	if !ok {
		r := textf(missing, query)
		return game, &r
	}
	return game, nil
}

// followDestination returns where posts of a followed game currently go.
func (h *Handler) followDestination(ctx context.Context, guildID, gameID string) (models.Destination, error) {
	f, err := h.svc.DB.GetFollow(ctx, guildID, gameID)
	if err != nil {
		return models.Destination{}, err
	}
	if f.ChannelID != "" {
		return models.Channel(f.ChannelID), nil
	}
	main, err := h.svc.DB.GetMainChannel(ctx, guildID)
	if err != nil || main == "" {
		return models.Destination{}, err
	}
	return models.Channel(main), nil
}

// permissionWarning tells why posts could not be delivered to dest, or
// returns "" when they can.
func (h *Handler) permissionWarning(ctx context.Context, guildID string, dest models.Destination) string {
	_, err := h.svc.Transport.Resolve(ctx, guildID, dest)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, tracker.ErrForbidden):
		return "It seems I'm not allowed to view or send messages in this channel, please check my permissions."
	case errors.Is(err, tracker.ErrNotFound):
		return "I can't find this channel, please check it still exists."
	default:
		h.log.WithError(err).Warn("Cannot check channel permissions")
		return "I couldn't check my permissions in this channel."
	}
}

// sendLatest returns an after hook posting the newest post of a game, so the
// guild sees the setup works.
func (h *Handler) sendLatest(guildID string, game models.Game, dest models.Destination) func(context.Context) {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		post, err := h.svc.Tracker.SendLatest(ctx, guildID, game.ID, dest)
		log := h.log.WithFields(logrus.Fields{"guild": guildID, "game": game.ID})
		if err != nil {
			log.WithError(err).Warn("Cannot send the latest post")
			return
		}
		log.Infof("Latest post %s sent to %s", post.ID, dest.Mention())
	}
}

func (h *Handler) follow(ctx context.Context, req request) reply {
	game, fail := h.findGame(ctx, req.Options[command.OptGame])
	if fail != nil {
		return *fail
	}

	added, err := h.svc.DB.AddFollow(ctx, req.GuildID, game.ID)
	if err != nil {
		h.log.WithError(err).Error("Cannot add follow")
		return textf(storeErrorMessage)
	}
	if !added {
		return textf("`%s` is already in the following list.", game.Name)
	}
	h.log.WithField("guild", req.GuildID).Infof("%q followed", game.ID)

	msg := "`" + game.Name + "` has been added to following list."
	dest, err := h.followDestination(ctx, req.GuildID, game.ID)
	if err != nil || dest.IsZero() {
		return textf("%s Please use `/dt-set-channel` to receive the latest posts.", msg)
	}
	r := textf("%s I'll post new entries in %s. You should receive the last post in a few moments.", msg, dest.Mention())
	r.after = h.sendLatest(req.GuildID, game, dest)
	return r
}

func (h *Handler) unfollow(ctx context.Context, req request) reply {
	game, fail := h.requireFollowed(ctx, req.GuildID, req.Options[command.OptGame], notFollowingMessage)
	if fail != nil {
		return *fail
	}
	removed, err := h.svc.DB.RemoveFollow(ctx, req.GuildID, game.ID)
	if err != nil {
		h.log.WithError(err).Error("Cannot remove follow")
		return textf(storeErrorMessage)
	}
	if !removed {
		return textf(notFollowingMessage, game.Name)
	}
	h.log.WithField("guild", req.GuildID).Infof("%q unfollowed", game.ID)
	return textf("`%s` has been removed from the following list.", game.Name)
}

func (h *Handler) setChannel(ctx context.Context, req request) reply {
	dest := req.Channel
	if dest.IsZero() {
		return textf("Please pick a channel.")
	}

	switch req.Sub {
	case command.SubDefault:
		if err := h.svc.DB.SetMainChannel(ctx, req.GuildID, dest.ID); err != nil {
			h.log.WithError(err).Error("Cannot set default channel")
			return textf(storeErrorMessage)
		}
		h.log.WithField("guild", req.GuildID).Infof("%s set as default channel", dest.ID)
		r := textf("%s set as default channel.", dest.Mention())
		if warning := h.permissionWarning(ctx, req.GuildID, dest); warning != "" {
			r.content += "\n" + warning
		}
		return r

	case command.SubGame:
		game, fail := h.findGame(ctx, req.Options[command.OptGame])
		if fail != nil {
			return *fail
		}
		if _, err := h.svc.DB.AddFollow(ctx, req.GuildID, game.ID); err != nil {
			h.log.WithError(err).Error("Cannot add follow")
			return textf(storeErrorMessage)
		}
		if err := h.svc.DB.SetGameChannel(ctx, req.GuildID, game.ID, dest.ID); err != nil {
			h.log.WithError(err).Error("Cannot set game channel")
			return textf(storeErrorMessage)
		}
		h.log.WithField("guild", req.GuildID).Infof("%s set as channel for %q", dest.ID, game.ID)

		warning := h.permissionWarning(ctx, req.GuildID, dest)
		r := textf("%s set as notification channel for `%s`.", dest.Mention(), game.Name)
		if warning != "" {
			r.content += "\n" + warning
			return r
		}
		r.content += " You should receive the last post shortly."
		r.after = h.sendLatest(req.GuildID, game, dest)
		return r
	}
	return textf("Unknown subcommand.")
}

func (h *Handler) unsetChannel(ctx context.Context, req request) reply {
	switch req.Sub {
	case command.SubDefault:
		if err := h.svc.DB.UnsetMainChannel(ctx, req.GuildID); err != nil {
			h.log.WithError(err).Error("Cannot unset default channel")
			return textf(storeErrorMessage)
		}
		return textf("You don't have a default channel anymore, make sure you have one set for each followed game using `/dt-config`.")

	case command.SubGame:
		game, fail := h.requireFollowed(ctx, req.GuildID, req.Options[command.OptGame], notFollowingMessage)
		if fail != nil {
			return *fail
		}
		err := h.svc.DB.UnsetGameChannel(ctx, req.GuildID, game.ID)
		if errors.Is(err, database.ErrNotFollowing) {
			return textf(notFollowingMessage, game.Name)
		}
		if err != nil {
			h.log.WithError(err).Error("Cannot unset game channel")
			return textf(storeErrorMessage)
		}
		return textf("The notification channel for `%s` is no longer set.", game.Name)
	}
	return textf("Unknown subcommand.")
}
