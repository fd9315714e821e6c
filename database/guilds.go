package database

import (
	"context"
	"fmt"
)

// AddGuild registers a guild. Adding a known guild is a no-op.
func (d *DB) AddGuild(ctx context.Context, guildID string) error {
	if _, err := d.exec(ctx, `INSERT OR IGNORE INTO guilds (id) VALUES (?)`, guildID); err != nil {
		return fmt.Errorf("failed to add guild %s: %w", guildID, err)
	}
	return nil
}

// RemoveGuild deletes a guild with its follows and everything scoped to them.
func (d *DB) RemoveGuild(ctx context.Context, guildID string) error {
	if _, err := d.exec(ctx, `DELETE FROM guilds WHERE id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to remove guild %s: %w", guildID, err)
	}
	return nil
}

// GetGuildIDs returns every registered guild.
func (d *DB) GetGuildIDs(ctx context.Context) ([]string, error) {
	ids, err := d.queryStrings(ctx, `SELECT id FROM guilds ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guilds: %w", err)
	}
	return ids, nil
}

// SetMainChannel sets the default channel of a guild, registering the guild if needed.
func (d *DB) SetMainChannel(ctx context.Context, guildID, channelID string) error {
	query := `
    INSERT INTO guilds (id, main_channel_id) VALUES (?, ?)
    ON CONFLICT(id) DO UPDATE SET main_channel_id = excluded.main_channel_id`
	if _, err := d.exec(ctx, query, guildID, channelID); err != nil {
		return fmt.Errorf("failed to set main channel of guild %s: %w", guildID, err)
	}
	return nil
}

// UnsetMainChannel clears the default channel of a guild.
func (d *DB) UnsetMainChannel(ctx context.Context, guildID string) error {
	if _, err := d.exec(ctx, `UPDATE guilds SET main_channel_id = NULL WHERE id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to unset main channel of guild %s: %w", guildID, err)
	}
	return nil
}

// GetMainChannel returns the default channel of a guild, empty when unset.
func (d *DB) GetMainChannel(ctx context.Context, guildID string) (string, error) {
	ids, err := d.queryStrings(ctx, `SELECT COALESCE(main_channel_id, '') FROM guilds WHERE id = ?`, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to query main channel of guild %s: %w", guildID, err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// GetMainChannels returns the default channel of every guild that has one.
func (d *DB) GetMainChannels(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, main_channel_id FROM guilds WHERE main_channel_id IS NOT NULL AND main_channel_id != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to query main channels: %w", err)
	}
	defer rows.Close()

	channels := make(map[string]string)
	for rows.Next() {
		var guildID, channelID string
		if err := rows.Scan(&guildID, &channelID); err != nil {
			return nil, fmt.Errorf("failed to scan main channel: %w", err)
		}
		channels[guildID] = channelID
	}
	return channels, rows.Err()
}
