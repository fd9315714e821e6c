package database

import (
	"context"
	"database/sql"
	"fmt"

	"devtracker-bot/models"
)

// SetURLFilter stores a URL filter of a followed game. A filter replaces the
// one already bound to the same service and destination, so a service has at
// most one global filter.
func (d *DB) SetURLFilter(ctx context.Context, guildID, gameID string, f models.URLFilter) error {
	if err := d.ensureFollow(ctx, guildID, gameID); err != nil {
		return err
	}

	var channelID, threadID, parentID sql.NullString
	switch f.Destination.Kind {
	case models.DestinationChannel:
		channelID = sql.NullString{String: f.Destination.ID, Valid: true}
	case models.DestinationThread:
		threadID = sql.NullString{String: f.Destination.ID, Valid: true}
		parentID = sql.NullString{String: f.Destination.ParentID, Valid: f.Destination.ParentID != ""}
	}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
        DELETE FROM url_filters
        WHERE guild_id = ? AND game_id = ? AND service_id = ?
          AND COALESCE(channel_id, '') = ? AND COALESCE(thread_id, '') = ?`,
			guildID, gameID, f.ServiceID, channelID.String, threadID.String)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
        INSERT INTO url_filters (guild_id, game_id, service_id, filters, channel_id, thread_id, parent_id)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
			guildID, gameID, f.ServiceID, f.Filters, channelID, threadID, parentID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set URL filter for %s/%s/%s: %w", guildID, gameID, f.ServiceID, err)
	}
	return nil
}

// ClearURLFilters removes every URL filter of a service for a followed game
// and returns how many were removed.
func (d *DB) ClearURLFilters(ctx context.Context, guildID, gameID, serviceID string) (int64, error) {
	n, err := d.exec(ctx, `DELETE FROM url_filters WHERE guild_id = ? AND game_id = ? AND service_id = ?`, guildID, gameID, serviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear URL filters for %s/%s/%s: %w", guildID, gameID, serviceID, err)
	}
	return n, nil
}

const urlFilterColumns = `guild_id, game_id, service_id, filters, COALESCE(channel_id, ''), COALESCE(thread_id, ''), COALESCE(parent_id, '')`

// GetURLFilters returns the URL filters of a guild for a game in stored order.
func (d *DB) GetURLFilters(ctx context.Context, guildID, gameID string) ([]models.URLFilter, error) {
	scoped, err := d.queryURLFilters(ctx, `SELECT `+urlFilterColumns+` FROM url_filters WHERE guild_id = ? AND game_id = ? ORDER BY id`, guildID, gameID)
	if err != nil {
		return nil, err
	}
	filters := make([]models.URLFilter, 0, len(scoped))
	for _, sf := range scoped {
		filters = append(filters, sf.URLFilter)
	}
	return filters, nil
}

// GetAllURLFilters loads the URL filters of every guild, in stored order per service.
func (d *DB) GetAllURLFilters(ctx context.Context) (models.URLFilterTable, error) {
	scoped, err := d.queryURLFilters(ctx, `SELECT `+urlFilterColumns+` FROM url_filters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	table := models.URLFilterTable{}
	for _, sf := range scoped {
		table.Add(sf.guildID, sf.gameID, sf.URLFilter)
	}
	return table, nil
}

type scopedURLFilter struct {
	guildID, gameID string
	models.URLFilter
}

func (d *DB) queryURLFilters(ctx context.Context, query string, args ...any) ([]scopedURLFilter, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query URL filters: %w", err)
	}
	defer rows.Close()

	var filters []scopedURLFilter
	for rows.Next() {
		var sf scopedURLFilter
		var channelID, threadID, parentID string
		if err := rows.Scan(&sf.guildID, &sf.gameID, &sf.ServiceID, &sf.Filters, &channelID, &threadID, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan URL filter: %w", err)
		}
		switch {
		case threadID != "":
			sf.Destination = models.Thread(threadID, parentID)
		case channelID != "":
			sf.Destination = models.Channel(channelID)
		}
		filters = append(filters, sf)
	}
	return filters, rows.Err()
}
