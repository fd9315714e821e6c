package database

import (
	"context"
	"database/sql"
	"fmt"

	"devtracker-bot/models"
)

// GetSeenPosts returns the seen post identifiers of every game that has a
// recorded seen-set, empty sets included.
func (d *DB) GetSeenPosts(ctx context.Context) (map[string]models.Set, error) {
	games, err := d.queryStrings(ctx, `SELECT game_id FROM seen_games`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen games: %w", err)
	}
	seen := make(map[string]models.Set, len(games))
	for _, gameID := range games {
		seen[gameID] = models.Set{}
	}

	rows, err := d.db.QueryContext(ctx, `SELECT game_id, post_id FROM seen_posts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gameID, postID string
		if err := rows.Scan(&gameID, &postID); err != nil {
			return nil, fmt.Errorf("failed to scan seen post: %w", err)
		}
		if seen[gameID] == nil {
			seen[gameID] = models.Set{}
		}
		seen[gameID].Add(postID)
	}
	return seen, rows.Err()
}

// ReplaceSeenPosts overwrites the seen posts of a game with ids. Identifiers
// that are not in ids anymore are forgotten.
func (d *DB) ReplaceSeenPosts(ctx context.Context, gameID string, ids models.Set) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO seen_games (game_id) VALUES (?)`, gameID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM seen_posts WHERE game_id = ?`, gameID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO seen_posts (game_id, post_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for id := range ids {
			if _, err := stmt.ExecContext(ctx, gameID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace seen posts of game %s: %w", gameID, err)
	}
	return nil
}
