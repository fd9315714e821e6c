package models

import "time"

// Post is a single developer update returned by the content API.
type Post struct {
	ID        string  `json:"id"`
	Topic     string  `json:"topic"`
	URL       string  `json:"url"`
	Timestamp int64   `json:"timestamp"` // Unix seconds
	Content   string  `json:"content"`
	Account   Account `json:"account"`
}

// Published returns the post timestamp in UTC.
func (p Post) Published() time.Time {
	return time.Unix(p.Timestamp, 0).UTC()
}

// Account is the upstream account a post was published from.
type Account struct {
	Identifier string    `json:"identifier"`
	Service    string    `json:"service"`
	Developer  Developer `json:"developer"`
}

// Developer carries the display name attached to an account.
type Developer struct {
	Nick  string `json:"nick"`
	Group string `json:"group"`
}

// Game is an entry of the tracked games catalog.
type Game struct {
	ID   string `json:"identifier"`
	Name string `json:"name"`
}
