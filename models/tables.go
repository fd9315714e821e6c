package models

// Set is a set of identifiers.
type Set map[string]struct{}

// NewSet builds a set from the given identifiers.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set is empty.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// Equal reports whether both sets hold the same identifiers.
func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if !o.Has(id) {
			return false
		}
	}
	return true
}

// ListTable maps guild -> game -> identifiers. Missing keys read as empty.
type ListTable map[string]map[string]Set

// Get returns the identifiers for a guild and game, never nil.
func (t ListTable) Get(guildID, gameID string) Set {
	if s := t[guildID][gameID]; s != nil {
		return s
	}
	return Set{}
}

// Add inserts id for a guild and game.
func (t ListTable) Add(guildID, gameID, id string) {
	games, ok := t[guildID]
	if !ok {
		games = make(map[string]Set)
		t[guildID] = games
	}
	s, ok := games[gameID]
	if !ok {
		s = Set{}
		games[gameID] = s
	}
	s.Add(id)
}

// FilterLists are the four allow/ignore tables of every guild.
type FilterLists struct {
	AllowedServices ListTable
	IgnoredServices ListTable
	AllowedAccounts ListTable
	IgnoredAccounts ListTable
}

// URLFilterTable maps guild -> game -> service -> rules in stored order.
type URLFilterTable map[string]map[string]map[string][]URLFilter

// Get returns the rules of a guild, game and service. Missing keys read as empty.
func (t URLFilterTable) Get(guildID, gameID, serviceID string) []URLFilter {
	return t[guildID][gameID][serviceID]
}

// Add appends a rule, keeping insertion order.
func (t URLFilterTable) Add(guildID, gameID string, f URLFilter) {
	games, ok := t[guildID]
	if !ok {
		games = make(map[string]map[string][]URLFilter)
		t[guildID] = games
	}
	services, ok := games[gameID]
	if !ok {
		services = make(map[string][]URLFilter)
		games[gameID] = services
	}
	services[f.ServiceID] = append(services[f.ServiceID], f)
}
