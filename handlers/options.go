package handlers

import (
	"strings"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
)

// flatten returns the subcommand name, if any, and the options below it.
func flatten(options []*discordgo.ApplicationCommandInteractionDataOption) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 1 && options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return options[0].Name, options[0].Options
	}
	return "", options
}

func newRequest(s *discordgo.Session, i *discordgo.InteractionCreate) request {
	data := i.ApplicationCommandData()
	sub, options := flatten(data.Options)

	req := request{
		Command: data.Name,
		Sub:     sub,
		GuildID: i.GuildID,
		UserID:  userID(i),
		Options: make(map[string]string, len(options)),
	}
	for _, opt := range options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionChannel:
			ch := resolvedChannel(s, data, opt)
			req.Options[opt.Name] = ch.ID
			req.Channel = destinationOf(ch)
		case discordgo.ApplicationCommandOptionString:
			req.Options[opt.Name] = strings.TrimSpace(opt.StringValue())
		}
	}
	return req
}

// resolvedChannel prefers the channel sent with the interaction, which
// carries the type and parent of threads.
func resolvedChannel(s *discordgo.Session, data discordgo.ApplicationCommandInteractionData, opt *discordgo.ApplicationCommandInteractionDataOption) *discordgo.Channel {
	id, _ := opt.Value.(string)
	if data.Resolved != nil {
		if ch, ok := data.Resolved.Channels[id]; ok {
			return ch
		}
	}
	return opt.ChannelValue(s)
}

func destinationOf(ch *discordgo.Channel) models.Destination {
	if ch == nil || ch.ID == "" {
		return models.Destination{}
	}
	if ch.IsThread() {
		return models.Thread(ch.ID, ch.ParentID)
	}
	return models.Channel(ch.ID)
}

func userID(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}

// focused returns the option being typed and the values of the others.
func focused(options []*discordgo.ApplicationCommandInteractionDataOption) (name, input string, values map[string]string) {
	values = make(map[string]string, len(options))
	for _, opt := range options {
		v, _ := opt.Value.(string)
		if opt.Focused {
			name, input = opt.Name, v
			continue
		}
		values[opt.Name] = v
	}
	return name, input, values
}
