// Package tracker runs the refresh cycle: it fetches the posts of every
// followed game, keeps the new ones, filters them per guild and delivers
// them to the right channels.
package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"devtracker-bot/api"
	"devtracker-bot/models"
	"devtracker-bot/sanitizer"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// PostSource fetches the post snapshot of a game.
type PostSource interface {
	ListPosts(ctx context.Context, gameID string) ([]models.Post, error)
}

// Store is the state the refresh cycle reads and writes.
type Store interface {
	GetAllFollows(ctx context.Context) ([]models.Follow, error)
	GetMainChannels(ctx context.Context) (map[string]string, error)
	GetFilterLists(ctx context.Context) (models.FilterLists, error)
	GetAllURLFilters(ctx context.Context) (models.URLFilterTable, error)
	GetSeenPosts(ctx context.Context) (map[string]models.Set, error)
	ReplaceSeenPosts(ctx context.Context, gameID string, ids models.Set) error
	SetLastPost(ctx context.Context, guildID, gameID, postID string) error
}

// Config tunes a Tracker.
type Config struct {
	FetchConcurrency int
	SendConcurrency  int
	FetchTimeout     time.Duration // per game, zero leaves it to the source
}

// Tracker runs refresh cycles. Refresh must not be called concurrently.
type Tracker struct {
	source    PostSource
	store     Store
	transport Transport
	catalog   *Catalog
	sanitizer *sanitizer.Sanitizer
	cfg       Config
	log       *logrus.Entry
}

func New(source PostSource, store Store, transport Transport, catalog *Catalog, cfg Config, log *logrus.Entry) *Tracker {
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 1
	}
	if cfg.SendConcurrency < 1 {
		cfg.SendConcurrency = 1
	}
	return &Tracker{
		source:    source,
		store:     store,
		transport: transport,
		catalog:   catalog,
		sanitizer: sanitizer.New(log.WithField("module", "sanitizer")),
		cfg:       cfg,
		log:       log,
	}
}

// CycleReport summarizes one refresh cycle.
type CycleReport struct {
	ID          string               `json:"id"`
	Started     time.Time            `json:"started"`
	Duration    time.Duration        `json:"duration"`
	Games       int                  `json:"games"`
	Fetched     int                  `json:"fetched"`
	FetchErrors map[api.Tag][]string `json:"fetch_errors,omitempty"`
	Posts       int                  `json:"posts"`
	NewPosts    int                  `json:"new_posts"`
	Messages    int                  `json:"messages"`
	Delivered   int                  `json:"delivered"`
	Failed      int                  `json:"failed"`
	Notified    int                  `json:"owners_notified"`
}

// state is read once at the top of a cycle and never re-read mid-cycle.
type state struct {
	follows    []models.Follow
	main       map[string]string
	lists      models.FilterLists
	urlFilters models.URLFilterTable
	seen       map[string]models.Set
}

// Refresh runs one cycle. Failures scoped to a game, a guild or a
// destination are logged and counted in the report; an error is returned
// only when the cycle could not run at all. A cycle where no game could be
// fetched returns ErrNoPosts and leaves the stored state untouched.
func (t *Tracker) Refresh(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.NewString(), Started: time.Now(), FetchErrors: map[api.Tag][]string{}}
	log := t.log.WithField("cycle", report.ID)
	defer func() { report.Duration = time.Since(report.Started) }()

	log.Info("Refreshing posts.")
	st, err := t.loadState(ctx)
	if err != nil {
		return report, err
	}

	games := followedGames(st.follows)
	report.Games = len(games)
	log.Infof("%d follows retrieved over %d games.", len(st.follows), len(games))
	if len(games) == 0 {
		return report, nil
	}

	snapshots := t.fetchAll(ctx, log, games, report)
	if len(snapshots) == 0 {
		log.Error("API didn't return anything, aborting the cycle.")
		return report, ErrNoPosts
	}

	fresh := newPosts(snapshots, st.seen)
	rendered := t.renderAll(fresh, report)

	c := &cycle{
		Tracker:  t,
		log:      log,
		report:   report,
		names:    t.names(ctx),
		notified: map[string]bool{},
		newest:   map[followKey]models.Post{},
	}
	plans := c.plan(ctx, st, rendered)
	c.deliverAll(ctx, plans)
	t.persist(ctx, log, snapshots, st.seen, c.newest)

	log.WithFields(logrus.Fields{
		"new_posts": report.NewPosts,
		"messages":  report.Messages,
		"failed":    report.Failed,
	}).Info("Refresh task completed.")
	return report, nil
}

func (t *Tracker) loadState(ctx context.Context) (*state, error) {
	var st state
	var err error
	if st.follows, err = t.store.GetAllFollows(ctx); err != nil {
		return nil, fmt.Errorf("failed to load follows: %w", err)
	}
	if st.main, err = t.store.GetMainChannels(ctx); err != nil {
		return nil, fmt.Errorf("failed to load main channels: %w", err)
	}
	if st.lists, err = t.store.GetFilterLists(ctx); err != nil {
		return nil, fmt.Errorf("failed to load filter lists: %w", err)
	}
	if st.urlFilters, err = t.store.GetAllURLFilters(ctx); err != nil {
		return nil, fmt.Errorf("failed to load URL filters: %w", err)
	}
	if st.seen, err = t.store.GetSeenPosts(ctx); err != nil {
		return nil, fmt.Errorf("failed to load seen posts: %w", err)
	}
	return &st, nil
}

func followedGames(follows []models.Follow) []string {
	set := models.Set{}
	var games []string
	for _, f := range follows {
		if !set.Has(f.GameID) {
			set.Add(f.GameID)
			games = append(games, f.GameID)
		}
	}
	sort.Strings(games)
	return games
}

// fetchAll fetches every game concurrently. Failed games are tagged in the
// report and left out of the result.
func (t *Tracker) fetchAll(ctx context.Context, log *logrus.Entry, games []string, report *CycleReport) map[string][]models.Post {
	var mu sync.Mutex
	snapshots := make(map[string][]models.Post, len(games))

	p := pool.New().WithMaxGoroutines(t.cfg.FetchConcurrency)
	for _, gameID := range games {
		gameID := gameID
		p.Go(func() {
			fctx := ctx
			if t.cfg.FetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, t.cfg.FetchTimeout)
				defer cancel()
			}
			posts, err := t.source.ListPosts(fctx, gameID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				tag := api.TagOf(err)
				report.FetchErrors[tag] = append(report.FetchErrors[tag], gameID)
				log.WithError(err).WithField("game", gameID).Debug("Fetch failed")
				return
			}
			snapshots[gameID] = posts
			report.Posts += len(posts)
		})
	}
	p.Wait()

	report.Fetched = len(snapshots)
	if len(report.FetchErrors) == 0 {
		log.Infof("%d posts retrieved (No errors.).", report.Posts)
	} else {
		for tag := range report.FetchErrors {
			sort.Strings(report.FetchErrors[tag])
		}
		log.Warnf("%d posts retrieved (%s).", report.Posts, formatFetchErrors(report.FetchErrors))
	}
	return snapshots
}

func formatFetchErrors(errs map[api.Tag][]string) string {
	tags := make([]string, 0, len(errs))
	for tag := range errs {
		tags = append(tags, string(tag))
	}
	sort.Strings(tags)
	var out string
	for i, tag := range tags {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %v", tag, errs[api.Tag(tag)])
	}
	return out
}

// newPosts returns, per game, the posts missing from the seen set, newest
// first. A game without a seen set yet only yields its newest post so that
// a new follow does not flood its channel with the backlog.
func newPosts(snapshots map[string][]models.Post, seen map[string]models.Set) map[string][]models.Post {
	fresh := make(map[string][]models.Post)
	for gameID, posts := range snapshots {
		sorted := append([]models.Post(nil), posts...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp > sorted[j].Timestamp })

		known, ok := seen[gameID]
		if !ok {
			if len(sorted) > 0 {
				fresh[gameID] = sorted[:1]
			}
			continue
		}
		for _, p := range sorted {
			if !known.Has(p.ID) {
				fresh[gameID] = append(fresh[gameID], p)
			}
		}
	}
	return fresh
}

type renderedPost struct {
	gameID string
	post   models.Post
	embed  *discordgo.MessageEmbed
}

// renderAll renders every new post once, whatever the number of guilds it goes to.
func (t *Tracker) renderAll(fresh map[string][]models.Post, report *CycleReport) map[string][]renderedPost {
	rendered := make(map[string][]renderedPost, len(fresh))
	for gameID, posts := range fresh {
		for _, p := range posts {
			rendered[gameID] = append(rendered[gameID], renderedPost{gameID: gameID, post: p, embed: t.Render(p)})
		}
		report.NewPosts += len(posts)
	}
	return rendered
}

func (t *Tracker) names(ctx context.Context) map[string]string {
	if t.catalog == nil {
		return map[string]string{}
	}
	return t.catalog.Names(ctx)
}

// persist overwrites the seen set of every fetched game whose snapshot
// changed, then records the newest post delivered per follow.
func (t *Tracker) persist(ctx context.Context, log *logrus.Entry, snapshots map[string][]models.Post, seen map[string]models.Set, newest map[followKey]models.Post) {
	for gameID, posts := range snapshots {
		ids := models.Set{}
		for _, p := range posts {
			ids.Add(p.ID)
		}
		// An empty snapshot only records that the game has no posts yet.
		if old, ok := seen[gameID]; ok && (old.Equal(ids) || len(ids) == 0) {
			continue
		}
		if err := t.store.ReplaceSeenPosts(ctx, gameID, ids); err != nil {
			log.WithError(err).WithField("game", gameID).Error("Could not save seen posts")
		}
	}

	for k, p := range newest {
		if err := t.store.SetLastPost(ctx, k.guildID, k.gameID, p.ID); err != nil {
			log.WithError(err).WithFields(logrus.Fields{"guild": k.guildID, "game": k.gameID}).Warn("Could not save last post")
		}
	}
}
