package handlers

import (
	"context"
	"errors"
	"strings"

	"devtracker-bot/command"
	"devtracker-bot/database"
	"devtracker-bot/models"
)

var listKinds = map[string]database.ListKind{
	command.Allowlist:  database.Allowed,
	command.Ignorelist: database.Ignored,
}

func listLabel(kind database.ListKind) string {
	if kind == database.Allowed {
		return "allowlist"
	}
	return "ignorelist"
}

// accountValue encodes an account choice. Identifiers are only unique
// within a service.
func accountValue(serviceID, accountID string) string {
	return serviceID + "/" + accountID
}

func parseAccount(v string) (serviceID, accountID string) {
	if service, account, ok := strings.Cut(v, "/"); ok && service != "" && account != "" {
		return service, account
	}
	return "", v
}

func (h *Handler) list(ctx context.Context, req request) reply {
	kind := listKinds[req.Command]
	game, fail := h.requireFollowed(ctx, req.GuildID, req.Options[command.OptGame], followFirstMessage)
	if fail != nil {
		return *fail
	}

	switch req.Sub {
	case command.SubAddAccount:
		return h.addAccount(ctx, req, kind, game)
	case command.SubAddService:
		return h.addService(ctx, req, kind, game)
	case command.SubRemoveAccount:
		return h.removeAccount(ctx, req, kind, game)
	case command.SubRemoveService:
		return h.removeService(ctx, req, kind, game)
	}
	return textf("Unknown subcommand.")
}

func (h *Handler) addAccount(ctx context.Context, req request, kind database.ListKind, game models.Game) reply {
	serviceID, accountID := parseAccount(req.Options[command.OptAccount])
	accounts, err := h.svc.API.ListAccounts(ctx, game.ID)
	if err != nil {
		h.log.WithError(err).Warn("Cannot list accounts")
		return textf(apiDownMessage)
	}
	var found *models.Account
	for i, a := range accounts {
		if strings.EqualFold(a.Identifier, accountID) && (serviceID == "" || a.Service == serviceID) {
			found = &accounts[i]
			break
		}
	}
	if found == nil {
		return textf("`%s` doesn't exist or isn't tracked for `%s`.", accountID, game.Name)
	}

	added, err := h.svc.DB.AddAccount(ctx, kind, req.GuildID, game.ID, found.Service, found.Identifier)
	if r, failed := h.storeFailure(err, game); failed {
		return r
	}
	if !added {
		return textf("`%s` (%s) is already in the %s of `%s`.", found.Identifier, found.Service, listLabel(kind), game.Name)
	}
	h.log.WithField("guild", req.GuildID).Infof("%s/%s added to the %s of %q", found.Service, found.Identifier, listLabel(kind), game.ID)
	if kind == database.Allowed {
		return textf("Posts from `%s` (%s) will always be sent for `%s`.", found.Identifier, found.Service, game.Name)
	}
	return textf("Posts from `%s` (%s) will be ignored for `%s` from now on.", found.Identifier, found.Service, game.Name)
}

func (h *Handler) addService(ctx context.Context, req request, kind database.ListKind, game models.Game) reply {
	serviceID, fail := h.findService(ctx, game, req.Options[command.OptService])
	if fail != nil {
		return *fail
	}
	added, err := h.svc.DB.AddService(ctx, kind, req.GuildID, game.ID, serviceID)
	if r, failed := h.storeFailure(err, game); failed {
		return r
	}
	if !added {
		return textf("`%s` is already in the %s of `%s`.", serviceID, listLabel(kind), game.Name)
	}
	h.log.WithField("guild", req.GuildID).Infof("%s added to the %s of %q", serviceID, listLabel(kind), game.ID)
	if kind == database.Allowed {
		return textf("Posts from `%s` will always be sent for `%s`.", serviceID, game.Name)
	}
	return textf("Posts from `%s` will be ignored for `%s` from now on.", serviceID, game.Name)
}

func (h *Handler) removeAccount(ctx context.Context, req request, kind database.ListKind, game models.Game) reply {
	serviceID, accountID := parseAccount(req.Options[command.OptAccount])
	if serviceID == "" {
		listed, err := h.svc.DB.GetAccounts(ctx, kind, req.GuildID, game.ID)
		if err != nil {
			h.log.WithError(err).Error("Cannot list accounts")
			return textf(storeErrorMessage)
		}
		for _, a := range listed {
			if strings.EqualFold(a.AccountID, accountID) {
				serviceID, accountID = a.ServiceID, a.AccountID
				break
			}
		}
	}
	removed, err := h.svc.DB.RemoveAccount(ctx, kind, req.GuildID, game.ID, serviceID, accountID)
	if r, failed := h.storeFailure(err, game); failed {
		return r
	}
	if !removed {
		return textf("`%s` isn't in the %s of `%s`.", accountID, listLabel(kind), game.Name)
	}
	return textf("`%s` has been removed from the %s of `%s`.", accountID, listLabel(kind), game.Name)
}

func (h *Handler) removeService(ctx context.Context, req request, kind database.ListKind, game models.Game) reply {
	serviceID := req.Options[command.OptService]
	removed, err := h.svc.DB.RemoveService(ctx, kind, req.GuildID, game.ID, serviceID)
	if r, failed := h.storeFailure(err, game); failed {
		return r
	}
	if !removed {
		return textf("`%s` isn't in the %s of `%s`.", serviceID, listLabel(kind), game.Name)
	}
	return textf("`%s` has been removed from the %s of `%s`.", serviceID, listLabel(kind), game.Name)
}

// findService checks the service is one the game's accounts post on.
func (h *Handler) findService(ctx context.Context, game models.Game, query string) (string, *reply) {
	services, err := h.svc.API.ListServices(ctx, game.ID)
	if err != nil {
		h.log.WithError(err).Warn("Cannot list services")
		r := textf(apiDownMessage)
		return "", &r
	}
	for _, s := range services {
		if strings.EqualFold(s, query) {
			return s, nil
		}
	}
	r := textf("`%s` isn't a service tracked for `%s`.", query, game.Name)
	return "", &r
}

func (h *Handler) storeFailure(err error, game models.Game) (reply, bool) {
	switch {
	case err == nil:
		return reply{}, false
	case errors.Is(err, database.ErrNotFollowing):
		return textf(followFirstMessage, game.Name), true
	default:
		h.log.WithError(err).Error("Cannot update lists")
		return textf(storeErrorMessage), true
	}
}

func (h *Handler) urlFilter(ctx context.Context, req request) reply {
	game, fail := h.requireFollowed(ctx, req.GuildID, req.Options[command.OptGame], followFirstMessage)
	if fail != nil {
		return *fail
	}

	switch req.Sub {
	case command.SubSet:
		serviceID, fail := h.findService(ctx, game, req.Options[command.OptService])
		if fail != nil {
			return *fail
		}
		f := models.URLFilter{ServiceID: serviceID, Filters: req.Options[command.OptFilters], Destination: req.Channel}
		patterns := f.Patterns()
		if len(patterns) == 0 {
			return textf("Please provide at least one URL fragment.")
		}
		f.Filters = strings.Join(patterns, ",")

		if r, failed := h.storeFailure(h.svc.DB.SetURLFilter(ctx, req.GuildID, game.ID, f), game); failed {
			return r
		}
		h.log.WithField("guild", req.GuildID).Infof("URL filter %q set for %s on %q", f.Filters, serviceID, game.ID)

		quoted := "`" + strings.Join(patterns, "`, `") + "`"
		if f.IsGlobal() {
			return textf("Posts from `%s` for `%s` will only be sent when their URL contains %s.", serviceID, game.Name, quoted)
		}
		r := textf("Posts from `%s` for `%s` whose URL contains %s will be sent to %s.", serviceID, game.Name, quoted, f.Destination.Mention())
		if warning := h.permissionWarning(ctx, req.GuildID, f.Destination); warning != "" {
			r.content += "\n" + warning
		}
		return r

	case command.SubClear:
		serviceID := req.Options[command.OptService]
		n, err := h.svc.DB.ClearURLFilters(ctx, req.GuildID, game.ID, serviceID)
		if r, failed := h.storeFailure(err, game); failed {
			return r
		}
		if n == 0 {
			return textf("No URL filter is set for `%s` on `%s`.", serviceID, game.Name)
		}
		return textf("%d URL filter(s) removed for `%s` on `%s`.", n, serviceID, game.Name)
	}
	return textf("Unknown subcommand.")
}
