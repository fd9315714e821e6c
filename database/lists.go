package database

import (
	"context"
	"fmt"

	"devtracker-bot/models"
)

// ListKind selects the allowlist or the ignorelist.
type ListKind string

const (
	Allowed ListKind = "allowed"
	Ignored ListKind = "ignored"
)

// ListedAccount is an account entry of an allow/ignore list.
type ListedAccount struct {
	ServiceID string
	AccountID string
}

// AddAccount lists an account for a followed game. It reports false when
// the account was already listed.
func (d *DB) AddAccount(ctx context.Context, kind ListKind, guildID, gameID, serviceID, accountID string) (bool, error) {
	if err := d.ensureFollow(ctx, guildID, gameID); err != nil {
		return false, err
	}
	n, err := d.exec(ctx, `INSERT OR IGNORE INTO account_lists (kind, guild_id, game_id, service_id, account_id) VALUES (?, ?, ?, ?, ?)`,
		kind, guildID, gameID, serviceID, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to add %s account %s: %w", kind, accountID, err)
	}
	return n > 0, nil
}

// RemoveAccount unlists an account. It reports false when it was not listed.
func (d *DB) RemoveAccount(ctx context.Context, kind ListKind, guildID, gameID, serviceID, accountID string) (bool, error) {
	n, err := d.exec(ctx, `DELETE FROM account_lists WHERE kind = ? AND guild_id = ? AND game_id = ? AND service_id = ? AND account_id = ?`,
		kind, guildID, gameID, serviceID, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s account %s: %w", kind, accountID, err)
	}
	return n > 0, nil
}

// GetAccounts returns the listed accounts of a guild for a game.
func (d *DB) GetAccounts(ctx context.Context, kind ListKind, guildID, gameID string) ([]ListedAccount, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT service_id, account_id FROM account_lists WHERE kind = ? AND guild_id = ? AND game_id = ? ORDER BY service_id, account_id`,
		kind, guildID, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s accounts: %w", kind, err)
	}
	defer rows.Close()

	var accounts []ListedAccount
	for rows.Next() {
		var a ListedAccount
		if err := rows.Scan(&a.ServiceID, &a.AccountID); err != nil {
			return nil, fmt.Errorf("failed to scan %s account: %w", kind, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AddService lists a whole service for a followed game. It reports false
// when the service was already listed.
func (d *DB) AddService(ctx context.Context, kind ListKind, guildID, gameID, serviceID string) (bool, error) {
	if err := d.ensureFollow(ctx, guildID, gameID); err != nil {
		return false, err
	}
	n, err := d.exec(ctx, `INSERT OR IGNORE INTO service_lists (kind, guild_id, game_id, service_id) VALUES (?, ?, ?, ?)`,
		kind, guildID, gameID, serviceID)
	if err != nil {
		return false, fmt.Errorf("failed to add %s service %s: %w", kind, serviceID, err)
	}
	return n > 0, nil
}

// RemoveService unlists a service. It reports false when it was not listed.
func (d *DB) RemoveService(ctx context.Context, kind ListKind, guildID, gameID, serviceID string) (bool, error) {
	n, err := d.exec(ctx, `DELETE FROM service_lists WHERE kind = ? AND guild_id = ? AND game_id = ? AND service_id = ?`,
		kind, guildID, gameID, serviceID)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s service %s: %w", kind, serviceID, err)
	}
	return n > 0, nil
}

// GetServices returns the listed services of a guild for a game.
func (d *DB) GetServices(ctx context.Context, kind ListKind, guildID, gameID string) ([]string, error) {
	services, err := d.queryStrings(ctx, `SELECT service_id FROM service_lists WHERE kind = ? AND guild_id = ? AND game_id = ? ORDER BY service_id`,
		kind, guildID, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s services: %w", kind, err)
	}
	return services, nil
}

// GetFilterLists loads the allow/ignore lists of every guild at once.
func (d *DB) GetFilterLists(ctx context.Context) (models.FilterLists, error) {
	lists := models.FilterLists{
		AllowedServices: models.ListTable{},
		IgnoredServices: models.ListTable{},
		AllowedAccounts: models.ListTable{},
		IgnoredAccounts: models.ListTable{},
	}

	tables := []struct {
		query   string
		allowed models.ListTable
		ignored models.ListTable
	}{
		{`SELECT kind, guild_id, game_id, service_id FROM service_lists`, lists.AllowedServices, lists.IgnoredServices},
		{`SELECT kind, guild_id, game_id, account_id FROM account_lists`, lists.AllowedAccounts, lists.IgnoredAccounts},
	}
	for _, t := range tables {
		if err := d.loadListTable(ctx, t.query, t.allowed, t.ignored); err != nil {
			return lists, err
		}
	}
	return lists, nil
}

func (d *DB) loadListTable(ctx context.Context, query string, allowed, ignored models.ListTable) error {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query filter lists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind ListKind
		var guildID, gameID, id string
		if err := rows.Scan(&kind, &guildID, &gameID, &id); err != nil {
			return fmt.Errorf("failed to scan filter list entry: %w", err)
		}
		switch kind {
		case Allowed:
			allowed.Add(guildID, gameID, id)
		case Ignored:
			ignored.Add(guildID, gameID, id)
		}
	}
	return rows.Err()
}

func (d *DB) ensureFollow(ctx context.Context, guildID, gameID string) error {
	_, err := d.GetFollow(ctx, guildID, gameID)
	return err
}
