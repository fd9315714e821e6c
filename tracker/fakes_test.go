package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"devtracker-bot/api"
	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeSource struct {
	mu     sync.Mutex
	posts  map[string][]models.Post
	errs   map[string]error
	games  []models.Game
	gErr   error
	gCalls int
}

func (s *fakeSource) ListPosts(ctx context.Context, gameID string) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[gameID]; err != nil {
		return nil, err
	}
	return s.posts[gameID], nil
}

func (s *fakeSource) ListGames(ctx context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gCalls++
	return s.games, s.gErr
}

type fakeStore struct {
	mu         sync.Mutex
	follows    []models.Follow
	main       map[string]string
	lists      models.FilterLists
	urlFilters models.URLFilterTable
	seen       map[string]models.Set
	lastPosts  map[followKey]string
	replaced   []string
	games      []models.Game
}

func newFakeStore(follows ...models.Follow) *fakeStore {
	return &fakeStore{
		follows:    follows,
		main:       map[string]string{},
		urlFilters: models.URLFilterTable{},
		seen:       map[string]models.Set{},
		lastPosts:  map[followKey]string{},
	}
}

func (s *fakeStore) GetAllFollows(ctx context.Context) ([]models.Follow, error) {
	return s.follows, nil
}

func (s *fakeStore) GetMainChannels(ctx context.Context) (map[string]string, error) {
	return s.main, nil
}

func (s *fakeStore) GetFilterLists(ctx context.Context) (models.FilterLists, error) {
	return s.lists, nil
}

func (s *fakeStore) GetAllURLFilters(ctx context.Context) (models.URLFilterTable, error) {
	return s.urlFilters, nil
}

func (s *fakeStore) GetSeenPosts(ctx context.Context) (map[string]models.Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]models.Set, len(s.seen))
	for game, ids := range s.seen {
		seen[game] = models.NewSet()
		for id := range ids {
			seen[game].Add(id)
		}
	}
	return seen, nil
}

func (s *fakeStore) ReplaceSeenPosts(ctx context.Context, gameID string, ids models.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[gameID] = ids
	s.replaced = append(s.replaced, gameID)
	return nil
}

func (s *fakeStore) SetLastPost(ctx context.Context, guildID, gameID, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPosts[followKey{guildID: guildID, gameID: gameID}] = postID
	return nil
}

func (s *fakeStore) ReplaceGames(ctx context.Context, games []models.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = games
	return nil
}

func (s *fakeStore) GetGames(ctx context.Context) ([]models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games, nil
}

type fakeTransport struct {
	mu        sync.Mutex
	forbidden map[string]bool // Send fails
	hidden    map[string]bool // Resolve fails with ErrForbidden
	missing   map[string]bool // Resolve fails with ErrNotFound
	dmBlocked bool
	sent      map[string][][]string // destination -> post IDs per message
	dms       map[string][]string   // guild -> direct messages to its owner
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		forbidden: map[string]bool{},
		hidden:    map[string]bool{},
		missing:   map[string]bool{},
		sent:      map[string][][]string{},
		dms:       map[string][]string{},
	}
}

func (t *fakeTransport) Resolve(ctx context.Context, guildID string, dest models.Destination) (models.Destination, error) {
	switch {
	case t.missing[dest.ID]:
		return dest, fmt.Errorf("channel %s: %w", dest.ID, ErrNotFound)
	case t.hidden[dest.ID]:
		return dest, fmt.Errorf("channel %s: %w", dest.ID, ErrForbidden)
	}
	return dest, nil
}

func (t *fakeTransport) Send(ctx context.Context, dest models.Destination, embeds []*discordgo.MessageEmbed) error {
	if t.forbidden[dest.ID] {
		return fmt.Errorf("%w: 403 Forbidden", ErrForbidden)
	}
	ids := make([]string, len(embeds))
	for i, e := range embeds {
		ids[i] = e.Footer.Text[strings.LastIndex(e.Footer.Text, "DT#: ")+len("DT#: "):]
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[dest.ID] = append(t.sent[dest.ID], ids)
	return nil
}

func (t *fakeTransport) NotifyOwner(ctx context.Context, guildID, content string) error {
	if t.dmBlocked {
		return fmt.Errorf("%w: cannot send messages to this user", ErrForbidden)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dms[guildID] = append(t.dms[guildID], content)
	return nil
}

func testLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

func newTestTracker(src *fakeSource, store *fakeStore, tr *fakeTransport) *Tracker {
	log, _ := testLogger()
	return New(src, store, tr, nil, Config{FetchConcurrency: 2, SendConcurrency: 2}, log)
}

func post(id string, ts int64, service, account, url string) models.Post {
	return models.Post{
		ID:        id,
		Topic:     "Topic " + id,
		URL:       url,
		Timestamp: ts,
		Content:   "<p>Body of " + id + "</p>",
		Account: models.Account{
			Identifier: account,
			Service:    service,
			Developer:  models.Developer{Nick: "Dev", Group: "Team"},
		},
	}
}

func timeoutErr(game string) error {
	return &api.FetchError{Game: game, Tag: api.TagTimeout, Err: context.DeadlineExceeded}
}
