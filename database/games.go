package database

import (
	"context"
	"database/sql"
	"fmt"

	"devtracker-bot/models"
)

// ReplaceGames overwrites the local copy of the games catalog.
func (d *DB) ReplaceGames(ctx context.Context, games []models.Game) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM games`); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO games (id, name) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, g := range games {
			if _, err := stmt.ExecContext(ctx, g.ID, g.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace local games: %w", err)
	}
	return nil
}

// GetGames returns the local copy of the games catalog, sorted by name.
func (d *DB) GetGames(ctx context.Context) ([]models.Game, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name FROM games ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query local games: %w", err)
	}
	defer rows.Close()

	var games []models.Game
	for rows.Next() {
		var g models.Game
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}
