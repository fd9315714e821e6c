package tracker

import (
	"context"
	"fmt"

	"devtracker-bot/models"

	"github.com/bwmarrin/discordgo"
)

// SendLatest sends the newest post of a game to a destination of a guild
// and records it as the last post delivered to that guild.
func (t *Tracker) SendLatest(ctx context.Context, guildID, gameID string, dest models.Destination) (models.Post, error) {
	posts, err := t.source.ListPosts(ctx, gameID)
	if err != nil {
		return models.Post{}, err
	}
	if len(posts) == 0 {
		return models.Post{}, fmt.Errorf("game %s: %w", gameID, ErrNoPosts)
	}

	latest := posts[0]
	for _, p := range posts[1:] {
		if p.Timestamp > latest.Timestamp {
			latest = p
		}
	}

	dest, err = t.transport.Resolve(ctx, guildID, dest)
	if err != nil {
		return latest, err
	}
	t.log.Infof("%s: fetching %s for %q (dest: %s)", guildID, latest.ID, gameID, dest.Mention())
	if err := t.transport.Send(ctx, dest, []*discordgo.MessageEmbed{t.Render(latest)}); err != nil {
		return latest, err
	}
	if err := t.store.SetLastPost(ctx, guildID, gameID, latest.ID); err != nil {
		return latest, fmt.Errorf("failed to record last post: %w", err)
	}
	return latest, nil
}
