package handlers

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"devtracker-bot/command"
	"devtracker-bot/database"

	"github.com/bwmarrin/discordgo"
)

const (
	maxChoices         = 25
	maxChoiceLength    = 100
	autocompleteBudget = 2500 * time.Millisecond
)

// HandleAutocomplete handles all autocomplete interactions.
func (h *Handler) HandleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	sub, options := flatten(data.Options)
	field, input, values := focused(options)

	// Discord drops autocomplete answers after three seconds.
	ctx, cancel := context.WithTimeout(h.ctx, autocompleteBudget)
	defer cancel()
	choices := h.complete(ctx, i.GuildID, data.Name, sub, field, input, values)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		h.log.WithError(err).Debug("Error responding to autocomplete interaction")
	}
}

type candidate struct {
	name, value string
}

func (h *Handler) complete(ctx context.Context, guildID, cmd, sub, field, input string, values map[string]string) []*discordgo.ApplicationCommandOptionChoice {
	var cands []candidate
	switch field {
	case command.OptGame:
		if cmd == command.Follow || cmd == command.SetChannel {
			cands = h.catalogGames(ctx)
		} else {
			cands = h.followedGames(ctx, guildID)
		}
	case command.OptAccount:
		cands = h.accountCandidates(ctx, guildID, cmd, sub, values[command.OptGame])
	case command.OptService:
		cands = h.serviceCandidates(ctx, guildID, cmd, sub, values[command.OptGame])
	}
	return choices(cands, input)
}

func (h *Handler) catalogGames(ctx context.Context) []candidate {
	games, err := h.svc.Catalog.Games(ctx)
	if err != nil {
		return nil
	}
	cands := make([]candidate, 0, len(games))
	for _, g := range games {
		cands = append(cands, candidate{g.Name, g.Name})
	}
	return cands
}

func (h *Handler) followedGames(ctx context.Context, guildID string) []candidate {
	follows, err := h.svc.DB.GetGuildFollows(ctx, guildID)
	if err != nil {
		return nil
	}
	names := h.svc.Catalog.Names(ctx)
	cands := make([]candidate, 0, len(follows))
	for _, f := range follows {
		name := names[f.GameID]
		if name == "" {
			name = f.GameID
		}
		cands = append(cands, candidate{name, name})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].name < cands[j].name })
	return cands
}

func (h *Handler) accountCandidates(ctx context.Context, guildID, cmd, sub, gameQuery string) []candidate {
	game, ok, err := h.followedGame(ctx, guildID, gameQuery)
	if err != nil || !ok {
		return nil
	}

	var cands []candidate
	if sub == command.SubRemoveAccount {
		listed, err := h.svc.DB.GetAccounts(ctx, listKinds[cmd], guildID, game.ID)
		if err != nil {
			return nil
		}
		for _, a := range listed {
			cands = append(cands, candidate{a.AccountID + " (" + a.ServiceID + ")", accountValue(a.ServiceID, a.AccountID)})
		}
		return cands
	}

	accounts, err := h.svc.API.ListAccounts(ctx, game.ID)
	if err != nil {
		return nil
	}
	for _, a := range accounts {
		cands = append(cands, candidate{a.Identifier + " (" + a.Service + ")", accountValue(a.Service, a.Identifier)})
	}
	return cands
}

func (h *Handler) serviceCandidates(ctx context.Context, guildID, cmd, sub, gameQuery string) []candidate {
	game, ok, err := h.followedGame(ctx, guildID, gameQuery)
	if err != nil || !ok {
		return nil
	}

	var services []string
	if sub == command.SubRemoveService {
		kind, ok := listKinds[cmd]
		if !ok {
			kind = database.Allowed
		}
		services, err = h.svc.DB.GetServices(ctx, kind, guildID, game.ID)
	} else {
		services, err = h.svc.API.ListServices(ctx, game.ID)
	}
	if err != nil {
		return nil
	}
	cands := make([]candidate, 0, len(services))
	for _, s := range services {
		cands = append(cands, candidate{s, s})
	}
	return cands
}

// choices keeps the candidates containing input, ignoring case, up to the
// number of choices Discord accepts.
func choices(cands []candidate, input string) []*discordgo.ApplicationCommandOptionChoice {
	input = strings.ToLower(strings.TrimSpace(input))
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(cands), maxChoices))
	for _, c := range cands {
		if !strings.Contains(strings.ToLower(c.name), input) {
			continue
		}
		if utf8.RuneCountInString(c.value) > maxChoiceLength {
			continue
		}
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: clip(c.name, maxChoiceLength), Value: c.value})
		if len(out) == maxChoices {
			break
		}
	}
	return out
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
