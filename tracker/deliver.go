package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"devtracker-bot/filter"
	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

type followKey struct {
	guildID, gameID string
}

type destKey struct {
	guildID string
	dest    models.Destination
}

// delivery holds the posts going to one destination of one guild.
type delivery struct {
	guildID string
	dest    models.Destination
	items   []renderedPost
}

// cycle carries the bookkeeping shared by the deliveries of one refresh.
type cycle struct {
	*Tracker
	log    *logrus.Entry
	report *CycleReport
	names  map[string]string

	mu       sync.Mutex
	notified map[string]bool
	newest   map[followKey]models.Post
}

// plan resolves the destination of every new post for every follow and
// groups the posts by destination.
func (c *cycle) plan(ctx context.Context, st *state, rendered map[string][]renderedPost) []*delivery {
	byDest := make(map[destKey]*delivery)
	var deliveries []*delivery

	for _, f := range st.follows {
		posts := rendered[f.GameID]
		if len(posts) == 0 {
			continue
		}
		log := c.log.WithFields(logrus.Fields{"guild": f.GuildID, "game": f.GameID})

		var fallback models.Destination
		switch {
		case f.ChannelID != "":
			fallback = models.Channel(f.ChannelID)
		case st.main[f.GuildID] != "":
			fallback = models.Channel(st.main[f.GuildID])
		default:
			log.Warn("Guild follows a game but hasn't set any channel")
			c.notifyOwner(ctx, f.GuildID, fmt.Sprintf(noChannelMessage, c.gameName(f.GameID)))
			continue
		}

		lists := filter.ListsFor(st.lists, f.GuildID, f.GameID)
		for _, rp := range posts {
			acc := rp.post.Account
			verdict := filter.Evaluate(acc.Service, acc.Identifier, lists)
			if verdict == filter.Skip {
				log.Debugf("Skipped %s (%s/%s is ignored).", rp.post.ID, acc.Service, acc.Identifier)
				continue
			}

			dest := fallback
			route := filter.ApplyURLFilters(st.urlFilters.Get(f.GuildID, f.GameID, acc.Service), rp.post.URL)
			switch route.Action {
			case filter.Drop:
				if verdict != filter.Allow {
					log.Debugf("Skipped %s (%s matches no URL filter).", rp.post.ID, rp.post.URL)
					continue
				}
			case filter.Redirect:
				dest = route.Destination
			}

			k := destKey{guildID: f.GuildID, dest: dest}
			d, ok := byDest[k]
			if !ok {
				d = &delivery{guildID: f.GuildID, dest: dest}
				byDest[k] = d
				deliveries = append(deliveries, d)
			}
			d.items = append(d.items, rp)
		}
	}

	for _, d := range deliveries {
		sort.SliceStable(d.items, func(i, j int) bool { return d.items[i].post.Timestamp > d.items[j].post.Timestamp })
	}
	return deliveries
}

// deliverAll sends every delivery concurrently. Batches of one destination
// are sent in order.
func (c *cycle) deliverAll(ctx context.Context, deliveries []*delivery) {
	p := pool.New().WithMaxGoroutines(c.cfg.SendConcurrency)
	for _, d := range deliveries {
		d := d
		p.Go(func() {
			c.deliver(ctx, d)
		})
	}
	p.Wait()
}

func (c *cycle) deliver(ctx context.Context, d *delivery) {
	log := c.log.WithFields(logrus.Fields{"guild": d.guildID, "destination": d.dest.ID})
	batches := batchItems(d.items)

	dest, err := c.transport.Resolve(ctx, d.guildID, d.dest)
	if err != nil {
		c.addFailed(len(batches))
		c.handleDeliveryError(ctx, log, d, err)
		return
	}

	for i, batch := range batches {
		embeds := make([]*discordgo.MessageEmbed, len(batch))
		for j, rp := range batch {
			embeds[j] = rp.embed
		}

		if err := c.transport.Send(ctx, dest, embeds); err != nil {
			if errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) {
				c.addFailed(len(batches) - i)
				c.handleDeliveryError(ctx, log, d, err)
				return
			}
			c.addFailed(1)
			log.WithError(err).Errorf("Could not send %d embeds", len(embeds))
			continue
		}

		log.Infof("Sent %d embeds.", len(embeds))
		c.delivered(d.guildID, batch)
	}
}

func (c *cycle) handleDeliveryError(ctx context.Context, log *logrus.Entry, d *delivery, err error) {
	games := c.gameNames(d.items)
	switch {
	case errors.Is(err, ErrForbidden):
		log.WithError(err).Warn("Missing permissions for destination")
		c.notifyOwner(ctx, d.guildID, fmt.Sprintf(forbiddenMessage, games, d.dest.Mention()))
	case errors.Is(err, ErrNotFound):
		log.WithError(err).Warn("Destination can't be found")
		c.notifyOwner(ctx, d.guildID, fmt.Sprintf(notFoundMessage, d.dest.Mention(), games))
	default:
		log.WithError(err).Error("Could not resolve destination")
	}
}

const (
	noChannelMessage = "It seems you're following `%s` but you have not set any channel!\n" +
		"Please set a channel with `/dt-set-channel` to receive the latest posts."
	forbiddenMessage = "I can't send the latest posts for %s in %s.\n" +
		"Please make sure I can view that channel, send messages and embed links there."
	notFoundMessage = "I can't find %s anymore, the latest posts for %s could not be delivered.\n" +
		"Please set another channel with `/dt-set-channel`."
)

// notifyOwner sends content to the owner of a guild, at most once per guild
// and cycle. Owners with closed DMs are only logged.
func (c *cycle) notifyOwner(ctx context.Context, guildID, content string) {
	c.mu.Lock()
	if c.notified[guildID] {
		c.mu.Unlock()
		return
	}
	c.notified[guildID] = true
	c.mu.Unlock()

	log := c.log.WithField("guild", guildID)
	if err := c.transport.NotifyOwner(ctx, guildID, content); err != nil {
		if errors.Is(err, ErrForbidden) {
			log.Warn("Guild owner has blocked their DMs.")
		} else {
			log.WithError(err).Warn("Could not notify guild owner")
		}
		return
	}

	c.mu.Lock()
	c.report.Notified++
	c.mu.Unlock()
}

func (c *cycle) delivered(guildID string, batch []renderedPost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Messages++
	c.report.Delivered += len(batch)
	for _, rp := range batch {
		k := followKey{guildID: guildID, gameID: rp.gameID}
		if cur, ok := c.newest[k]; !ok || rp.post.Timestamp > cur.Timestamp {
			c.newest[k] = rp.post
		}
	}
}

func (c *cycle) addFailed(n int) {
	c.mu.Lock()
	c.report.Failed += n
	c.mu.Unlock()
}

func (c *cycle) gameName(gameID string) string {
	if name, ok := c.names[gameID]; ok && name != "" {
		return name
	}
	return gameID
}

func (c *cycle) gameNames(items []renderedPost) string {
	seen := models.Set{}
	var names []string
	for _, rp := range items {
		if !seen.Has(rp.gameID) {
			seen.Add(rp.gameID)
			names = append(names, "`"+c.gameName(rp.gameID)+"`")
		}
	}
	return strings.Join(names, ", ")
}
