// Package filter decides whether a post reaches a guild and where it goes.
package filter

import (
	"strings"

	"devtracker-bot/models"
)

// Verdict is the outcome of the allow/ignore evaluation.
type Verdict int

const (
	// Pass means no list matched.
	Pass Verdict = iota
	// Allow means the post matched an allowlist and overrides ignorelists.
	Allow
	// Skip means the post matched an ignorelist.
	Skip
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Skip:
		return "skip"
	default:
		return "pass"
	}
}

// Lists are the allow/ignore entries of one guild for one game.
type Lists struct {
	AllowedServices models.Set
	IgnoredServices models.Set
	AllowedAccounts models.Set
	IgnoredAccounts models.Set
}

// ListsFor extracts the lists of a guild and game from the global tables.
func ListsFor(t models.FilterLists, guildID, gameID string) Lists {
	return Lists{
		AllowedServices: t.AllowedServices.Get(guildID, gameID),
		IgnoredServices: t.IgnoredServices.Get(guildID, gameID),
		AllowedAccounts: t.AllowedAccounts.Get(guildID, gameID),
		IgnoredAccounts: t.IgnoredAccounts.Get(guildID, gameID),
	}
}

// Evaluate applies allowed service, allowed account, ignored service and
// ignored account in that order. The first match decides.
func Evaluate(service, account string, l Lists) Verdict {
	switch {
	case l.AllowedServices.Has(service):
		return Allow
	case l.AllowedAccounts.Has(account):
		return Allow
	case l.IgnoredServices.Has(service):
		return Skip
	case l.IgnoredAccounts.Has(account):
		return Skip
	}
	return Pass
}

// ShouldSkip reports whether the post must not be delivered to the guild.
func ShouldSkip(service, account string, l Lists) bool {
	return Evaluate(service, account, l) == Skip
}

// Action is the outcome of URL filtering.
type Action int

const (
	// Continue delivers to the already resolved destination.
	Continue Action = iota
	// Drop discards the post for this guild.
	Drop
	// Redirect delivers to the destination of the matching rule.
	Redirect
)

func (a Action) String() string {
	switch a {
	case Drop:
		return "drop"
	case Redirect:
		return "redirect"
	default:
		return "continue"
	}
}

// Route is the result of ApplyURLFilters.
type Route struct {
	Action      Action
	Destination models.Destination
}

// ApplyURLFilters matches url against the rules of one guild, game and service.
//
// Rules bound to a destination are tried in stored order and the first one
// whose patterns match redirects the post. When none matches, rules without
// a destination act as a gate: the post goes through only if one of their
// patterns matches. Without gate rules the post continues unchanged.
func ApplyURLFilters(rules []models.URLFilter, url string) Route {
	var gates []models.URLFilter
	for _, r := range rules {
		if r.IsGlobal() {
			gates = append(gates, r)
			continue
		}
		if matches(r, url) {
			return Route{Action: Redirect, Destination: r.Destination}
		}
	}

	if len(gates) == 0 {
		return Route{Action: Continue}
	}
	for _, g := range gates {
		if matches(g, url) {
			return Route{Action: Continue}
		}
	}
	return Route{Action: Drop}
}

func matches(f models.URLFilter, url string) bool {
	for _, p := range f.Patterns() {
		if strings.Contains(url, p) {
			return true
		}
	}
	return false
}
