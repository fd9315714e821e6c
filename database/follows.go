package database

import (
	"context"
	"database/sql"
	"fmt"

	"devtracker-bot/models"
)

const followColumns = `follower_guild_id, followed_game_id, COALESCE(channel_id, ''), COALESCE(last_post_id, '')`

// AddFollow subscribes a guild to a game. It reports false when the guild
// already follows it.
func (d *DB) AddFollow(ctx context.Context, guildID, gameID string) (bool, error) {
	var added bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO guilds (id) VALUES (?)`, guildID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO follows (follower_guild_id, followed_game_id) VALUES (?, ?)`, guildID, gameID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		added = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to add follow %s/%s: %w", guildID, gameID, err)
	}
	return added, nil
}

// RemoveFollow unsubscribes a guild from a game, dropping its lists and URL
// filters for that game. It reports false when there was nothing to remove.
func (d *DB) RemoveFollow(ctx context.Context, guildID, gameID string) (bool, error) {
	n, err := d.exec(ctx, `DELETE FROM follows WHERE follower_guild_id = ? AND followed_game_id = ?`, guildID, gameID)
	if err != nil {
		return false, fmt.Errorf("failed to remove follow %s/%s: %w", guildID, gameID, err)
	}
	return n > 0, nil
}

// GetFollow returns the follow of a guild for a game, or ErrNotFollowing.
func (d *DB) GetFollow(ctx context.Context, guildID, gameID string) (models.Follow, error) {
	var f models.Follow
	row := d.db.QueryRowContext(ctx, `SELECT `+followColumns+` FROM follows WHERE follower_guild_id = ? AND followed_game_id = ?`, guildID, gameID)
	switch err := row.Scan(&f.GuildID, &f.GameID, &f.ChannelID, &f.LastPostID); {
	case err == sql.ErrNoRows:
		return f, ErrNotFollowing
	case err != nil:
		return f, fmt.Errorf("failed to query follow %s/%s: %w", guildID, gameID, err)
	}
	return f, nil
}

// GetGuildFollows returns the follows of one guild.
func (d *DB) GetGuildFollows(ctx context.Context, guildID string) ([]models.Follow, error) {
	return d.queryFollows(ctx, `SELECT `+followColumns+` FROM follows WHERE follower_guild_id = ? ORDER BY followed_game_id`, guildID)
}

// GetAllFollows returns every follow of every guild.
func (d *DB) GetAllFollows(ctx context.Context) ([]models.Follow, error) {
	return d.queryFollows(ctx, `SELECT `+followColumns+` FROM follows ORDER BY follower_guild_id, followed_game_id`)
}

func (d *DB) queryFollows(ctx context.Context, query string, args ...any) ([]models.Follow, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query follows: %w", err)
	}
	defer rows.Close()

	var follows []models.Follow
	for rows.Next() {
		var f models.Follow
		if err := rows.Scan(&f.GuildID, &f.GameID, &f.ChannelID, &f.LastPostID); err != nil {
			return nil, fmt.Errorf("failed to scan follow: %w", err)
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

// SetGameChannel overrides the destination of one followed game.
func (d *DB) SetGameChannel(ctx context.Context, guildID, gameID, channelID string) error {
	return d.updateFollow(ctx, `UPDATE follows SET channel_id = ? WHERE follower_guild_id = ? AND followed_game_id = ?`, channelID, guildID, gameID)
}

// UnsetGameChannel makes a followed game fall back to the guild default channel.
func (d *DB) UnsetGameChannel(ctx context.Context, guildID, gameID string) error {
	return d.updateFollow(ctx, `UPDATE follows SET channel_id = NULL WHERE follower_guild_id = ? AND followed_game_id = ?`, guildID, gameID)
}

// SetLastPost records the newest post delivered to a guild for a game.
func (d *DB) SetLastPost(ctx context.Context, guildID, gameID, postID string) error {
	return d.updateFollow(ctx, `UPDATE follows SET last_post_id = ? WHERE follower_guild_id = ? AND followed_game_id = ?`, postID, guildID, gameID)
}

func (d *DB) updateFollow(ctx context.Context, query string, args ...any) error {
	n, err := d.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update follow: %w", err)
	}
	if n == 0 {
		return ErrNotFollowing
	}
	return nil
}

// CountFollows returns the number of follows across all guilds.
func (d *DB) CountFollows(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count follows: %w", err)
	}
	return n, nil
}
