package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// GuildCreate registers a guild when the bot joins it. The gateway also
// sends it for every guild on connect, which is harmless.
func (h *Handler) GuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, commandTimeout)
	defer cancel()
	if err := h.svc.DB.AddGuild(ctx, g.ID); err != nil {
		h.log.WithError(err).WithField("guild", g.ID).Error("Cannot add guild")
		return
	}
	h.log.WithField("guild", g.ID).Debugf("%s [%s] added to DB.", g.Name, g.ID)
}

// GuildDelete forgets a guild the bot was removed from, with everything it
// configured. Outages also send GuildDelete, marked unavailable.
func (h *Handler) GuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	ctx, cancel := context.WithTimeout(h.ctx, commandTimeout)
	defer cancel()
	if err := h.svc.DB.RemoveGuild(ctx, g.ID); err != nil {
		h.log.WithError(err).WithField("guild", g.ID).Error("Cannot remove guild")
		return
	}
	h.log.WithField("guild", g.ID).Infof("Guild %s removed from DB.", g.ID)
}
