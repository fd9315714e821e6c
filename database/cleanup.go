package database

import (
	"context"
	"fmt"
)

// PruneSeenPosts forgets the seen posts of games no guild follows anymore.
// A game followed again later starts over from its latest post.
func (d *DB) PruneSeenPosts(ctx context.Context) (int64, error) {
	d.log.Info("Starting cleanup of unfollowed games...")

	n, err := d.exec(ctx, `DELETE FROM seen_posts WHERE game_id NOT IN (SELECT DISTINCT followed_game_id FROM follows)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune seen posts: %w", err)
	}
	if _, err := d.exec(ctx, `DELETE FROM seen_games WHERE game_id NOT IN (SELECT DISTINCT followed_game_id FROM follows)`); err != nil {
		return 0, fmt.Errorf("failed to prune seen games: %w", err)
	}

	d.log.Infof("Successfully cleaned up %d seen posts of unfollowed games", n)
	return n, nil
}
