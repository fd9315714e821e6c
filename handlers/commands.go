package handlers

import (
	"context"
	"time"

	"devtracker-bot/command"
	"devtracker-bot/tracker"
	"devtracker-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

var commandPermissions = map[string]string{
	command.Help:         utils.LevelEveryone,
	command.Config:       utils.LevelManager,
	command.Follow:       utils.LevelManager,
	command.Unfollow:     utils.LevelManager,
	command.SetChannel:   utils.LevelManager,
	command.UnsetChannel: utils.LevelManager,
	command.Allowlist:    utils.LevelManager,
	command.Ignorelist:   utils.LevelManager,
	command.URLFilter:    utils.LevelManager,
	command.Stats:        utils.LevelDeveloper,
}

// CommandDispatcher is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func (h *Handler) CommandDispatcher(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	log := h.log.WithFields(logrus.Fields{"command": data.Name, "guild": i.GuildID})

	route, ok := h.routes[data.Name]
	if !ok {
		respondEphemeral(s, i, "🚫 Internal error: unknown command.")
		return
	}
	if i.GuildID == "" {
		respondEphemeral(s, i, "This command only works in a server.")
		return
	}
	if !h.svc.Auth.CheckPermission(i, commandPermissions[data.Name]) {
		respondEphemeral(s, i, "🚫 You don't have permission to use this command.")
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.WithError(err).Error("Cannot defer the interaction")
		return
	}

	req := newRequest(s, i)
	req.CanManage = h.svc.Auth.CheckPermission(i, utils.LevelManager)
	if data.Name == command.Stats {
		req.Members, req.Latency = sessionStats(s)
	}

	ctx, cancel := context.WithTimeout(h.ctx, commandTimeout)
	r := route(ctx, req)
	cancel()

	h.send(s, i, r)
	log.Debugf("Answered /%s %s", data.Name, req.Sub)
	if r.after != nil {
		go r.after(h.ctx)
	}
}

// send edits the deferred response with the reply. Embeds that do not fit a
// single message go out as follow-up messages.
func (h *Handler) send(s *discordgo.Session, i *discordgo.InteractionCreate, r reply) {
	batches := tracker.Batch(r.embeds)
	var first []*discordgo.MessageEmbed
	if len(batches) > 0 {
		first = batches[0]
	}
	content := r.content
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content, Embeds: &first}); err != nil {
		h.log.WithError(err).Error("Cannot edit the interaction response")
		return
	}
	for _, batch := range batches[min(1, len(batches)):] {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Embeds: batch}); err != nil {
			h.log.WithError(err).Error("Cannot send a follow-up message")
			return
		}
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func sessionStats(s *discordgo.Session) (members int, latency time.Duration) {
	s.State.RLock()
	for _, g := range s.State.Guilds {
		members += g.MemberCount
	}
	s.State.RUnlock()
	return members, s.HeartbeatLatency()
}
