package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"devtracker-bot/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CatalogTTL is how long a fetched catalog is reused before asking the API again.
const CatalogTTL = 3 * time.Minute

// GameSource lists the games tracked upstream.
type GameSource interface {
	ListGames(ctx context.Context) ([]models.Game, error)
}

// GameStore keeps a local copy of the catalog for when the API is down.
type GameStore interface {
	ReplaceGames(ctx context.Context, games []models.Game) error
	GetGames(ctx context.Context) ([]models.Game, error)
}

// Catalog serves the games catalog. Concurrent callers share one upstream
// request and a fresh catalog is kept in memory for CatalogTTL.
type Catalog struct {
	source GameSource
	store  GameStore
	log    *logrus.Entry
	group  singleflight.Group
	now    func() time.Time

	mu      sync.Mutex
	games   []models.Game
	fetched time.Time
}

func NewCatalog(source GameSource, store GameStore, log *logrus.Entry) *Catalog {
	return &Catalog{source: source, store: store, log: log, now: time.Now}
}

// Games returns the catalog sorted by name. When the API fails, the local
// copy saved by the last successful fetch is returned instead.
func (c *Catalog) Games(ctx context.Context) ([]models.Game, error) {
	c.mu.Lock()
	if c.games != nil && c.now().Sub(c.fetched) < CatalogTTL {
		games := c.games
		c.mu.Unlock()
		return games, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("games", func() (any, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Game), nil
}

// Invalidate drops the in-memory catalog.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.games = nil
	c.mu.Unlock()
}

func (c *Catalog) load(ctx context.Context) ([]models.Game, error) {
	games, err := c.source.ListGames(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Error while fetching the games catalog, falling back to database")
		local, lerr := c.store.GetGames(ctx)
		if lerr != nil {
			return nil, fmt.Errorf("failed to load games catalog: %w", errors.Join(err, lerr))
		}
		return local, nil
	}

	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	if err := c.store.ReplaceGames(ctx, games); err != nil {
		c.log.WithError(err).Warn("Could not save the games catalog locally")
	}

	c.mu.Lock()
	c.games, c.fetched = games, c.now()
	c.mu.Unlock()
	return games, nil
}

// Find returns the game whose identifier or name matches query, ignoring case.
func (c *Catalog) Find(ctx context.Context, query string) (models.Game, bool, error) {
	games, err := c.Games(ctx)
	if err != nil {
		return models.Game{}, false, err
	}
	for _, g := range games {
		if g.ID == query || strings.EqualFold(g.Name, query) {
			return g, true, nil
		}
	}
	return models.Game{}, false, nil
}

// Names maps game identifiers to display names. It never fails: a missing
// catalog yields an empty map and callers fall back to identifiers.
func (c *Catalog) Names(ctx context.Context) map[string]string {
	names := make(map[string]string)
	games, err := c.Games(ctx)
	if err != nil {
		c.log.WithError(err).Warn("Games catalog unavailable")
		return names
	}
	for _, g := range games {
		names[g.ID] = g.Name
	}
	return names
}
