package models

import "strings"

// Follow is a guild's subscription to a game.
type Follow struct {
	GuildID    string
	GameID     string
	ChannelID  string // empty when the guild default channel is used
	LastPostID string // informational, the seen-set drives dedup
}

// DestinationKind tells a channel destination from a thread destination.
type DestinationKind int

const (
	DestinationNone DestinationKind = iota
	DestinationChannel
	DestinationThread
)

// Destination is where rendered posts get delivered inside a guild.
type Destination struct {
	Kind     DestinationKind
	ID       string
	ParentID string // parent channel of a thread, may be unknown
}

// Channel returns a channel destination.
func Channel(id string) Destination {
	return Destination{Kind: DestinationChannel, ID: id}
}

// Thread returns a thread destination.
func Thread(id, parentID string) Destination {
	return Destination{Kind: DestinationThread, ID: id, ParentID: parentID}
}

// IsZero reports whether no destination is bound.
func (d Destination) IsZero() bool {
	return d.Kind == DestinationNone || d.ID == ""
}

// Mention renders the destination the way Discord displays channel links.
func (d Destination) Mention() string {
	if d.IsZero() {
		return "none"
	}
	return "<#" + d.ID + ">"
}

// URLFilter routes or gates posts of one service by substrings of their URL.
type URLFilter struct {
	ServiceID   string
	Filters     string // comma separated substrings
	Destination Destination
}

// Patterns returns the trimmed, non-empty substrings of the filter.
func (f URLFilter) Patterns() []string {
	var patterns []string
	for _, p := range strings.Split(f.Filters, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// IsGlobal reports whether the filter only gates posts instead of routing them.
func (f URLFilter) IsGlobal() bool {
	return f.Destination.IsZero()
}
