package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"devtracker-bot/models"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger, _ := test.NewNullLogger()
	db, err := Open(filepath.Join(t.TempDir(), "db", "tracking.db"), logrus.NewEntry(logger))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMainChannel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if got, err := db.GetMainChannel(ctx, "g1"); err != nil || got != "" {
		t.Fatalf("GetMainChannel on unknown guild = %q, %v", got, err)
	}
	if err := db.SetMainChannel(ctx, "g1", "c1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMainChannel(ctx, "g2", "c2"); err != nil {
		t.Fatal(err)
	}
	if err := db.UnsetMainChannel(ctx, "g2"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetMainChannels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, map[string]string{"g1": "c1"}); diff != "" {
		t.Errorf("main channels mismatch (-got +want):\n%s", diff)
	}

	ids, err := db.GetGuildIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(ids, []string{"g1", "g2"}); diff != "" {
		t.Errorf("guilds mismatch (-got +want):\n%s", diff)
	}
}

func TestFollows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	added, err := db.AddFollow(ctx, "g1", "sc")
	if err != nil || !added {
		t.Fatalf("AddFollow = %v, %v", added, err)
	}
	if added, _ := db.AddFollow(ctx, "g1", "sc"); added {
		t.Error("second AddFollow reported an addition")
	}
	if err := db.SetGameChannel(ctx, "g1", "sc", "c9"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetLastPost(ctx, "g1", "sc", "p1"); err != nil {
		t.Fatal(err)
	}

	f, err := db.GetFollow(ctx, "g1", "sc")
	if err != nil {
		t.Fatal(err)
	}
	want := models.Follow{GuildID: "g1", GameID: "sc", ChannelID: "c9", LastPostID: "p1"}
	if diff := cmp.Diff(f, want); diff != "" {
		t.Errorf("follow mismatch (-got +want):\n%s", diff)
	}

	if err := db.UnsetGameChannel(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}
	if f, _ := db.GetFollow(ctx, "g1", "sc"); f.ChannelID != "" {
		t.Errorf("channel override still set: %q", f.ChannelID)
	}

	if _, err := db.GetFollow(ctx, "g1", "d2"); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("GetFollow on unknown game: %v", err)
	}
	if err := db.SetGameChannel(ctx, "g1", "d2", "c1"); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("SetGameChannel on unknown game: %v", err)
	}

	removed, err := db.RemoveFollow(ctx, "g1", "sc")
	if err != nil || !removed {
		t.Fatalf("RemoveFollow = %v, %v", removed, err)
	}
	follows, err := db.GetAllFollows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(follows) != 0 {
		t.Errorf("follows left: %v", follows)
	}
}

func TestRemoveFollowCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	for _, game := range []string{"sc", "d2"} {
		if _, err := db.AddFollow(ctx, "g1", game); err != nil {
			t.Fatal(err)
		}
		if _, err := db.AddAccount(ctx, Ignored, "g1", game, "Reddit", "bot"); err != nil {
			t.Fatal(err)
		}
		if _, err := db.AddService(ctx, Allowed, "g1", game, "Twitter"); err != nil {
			t.Fatal(err)
		}
		if err := db.SetURLFilter(ctx, "g1", game, models.URLFilter{ServiceID: "rsi", Filters: "forum/1"}); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := db.RemoveFollow(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}

	lists, err := db.GetFilterLists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.FilterLists{
		AllowedServices: models.ListTable{"g1": {"d2": models.NewSet("Twitter")}},
		IgnoredServices: models.ListTable{},
		AllowedAccounts: models.ListTable{},
		IgnoredAccounts: models.ListTable{"g1": {"d2": models.NewSet("bot")}},
	}
	if diff := cmp.Diff(lists, want); diff != "" {
		t.Errorf("filter lists mismatch (-got +want):\n%s", diff)
	}

	filters, err := db.GetAllURLFilters(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := filters["g1"]["sc"]; ok {
		t.Error("URL filters of the unfollowed game survived")
	}
	if got := filters.Get("g1", "d2", "rsi"); len(got) != 1 {
		t.Errorf("URL filters of the other game: %v", got)
	}
}

func TestRemoveGuildCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.AddFollow(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddAccount(ctx, Allowed, "g1", "sc", "rsi", "dev"); err != nil {
		t.Fatal(err)
	}
	if err := db.RemoveGuild(ctx, "g1"); err != nil {
		t.Fatal(err)
	}

	follows, _ := db.GetAllFollows(ctx)
	accounts, _ := db.GetAccounts(ctx, Allowed, "g1", "sc")
	if len(follows) != 0 || len(accounts) != 0 {
		t.Errorf("guild data left: follows=%v accounts=%v", follows, accounts)
	}
}

func TestListsRequireFollow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.AddAccount(ctx, Ignored, "g1", "sc", "rsi", "dev"); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("AddAccount without follow: %v", err)
	}
	if _, err := db.AddService(ctx, Ignored, "g1", "sc", "rsi"); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("AddService without follow: %v", err)
	}
}

func TestListEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.AddFollow(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}
	if added, _ := db.AddAccount(ctx, Ignored, "g1", "sc", "rsi", "dev"); !added {
		t.Error("AddAccount did not add")
	}
	if added, _ := db.AddAccount(ctx, Ignored, "g1", "sc", "rsi", "dev"); added {
		t.Error("duplicate AddAccount reported an addition")
	}
	if _, err := db.AddAccount(ctx, Allowed, "g1", "sc", "Reddit", "cm"); err != nil {
		t.Fatal(err)
	}

	accounts, err := db.GetAccounts(ctx, Ignored, "g1", "sc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(accounts, []ListedAccount{{ServiceID: "rsi", AccountID: "dev"}}); diff != "" {
		t.Errorf("ignored accounts mismatch (-got +want):\n%s", diff)
	}

	if removed, _ := db.RemoveAccount(ctx, Ignored, "g1", "sc", "rsi", "dev"); !removed {
		t.Error("RemoveAccount did not remove")
	}
	if removed, _ := db.RemoveService(ctx, Ignored, "g1", "sc", "rsi"); removed {
		t.Error("RemoveService removed an unlisted service")
	}

	if _, err := db.AddService(ctx, Ignored, "g1", "sc", "Steam"); err != nil {
		t.Fatal(err)
	}
	services, err := db.GetServices(ctx, Ignored, "g1", "sc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(services, []string{"Steam"}); diff != "" {
		t.Errorf("ignored services mismatch (-got +want):\n%s", diff)
	}
}

func TestURLFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if _, err := db.AddFollow(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}
	filters := []models.URLFilter{
		{ServiceID: "rsi", Filters: "forum/1", Destination: models.Channel("x")},
		{ServiceID: "rsi", Filters: "forum/4", Destination: models.Thread("y", "x")},
		{ServiceID: "rsi", Filters: "forum/9"},
		// Replaces the global filter above.
		{ServiceID: "rsi", Filters: "forum/2, forum/3"},
		// Replaces the route to channel x, moving it last.
		{ServiceID: "rsi", Filters: "forum/5", Destination: models.Channel("x")},
	}
	for _, f := range filters {
		if err := db.SetURLFilter(ctx, "g1", "sc", f); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.GetURLFilters(ctx, "g1", "sc")
	if err != nil {
		t.Fatal(err)
	}
	want := []models.URLFilter{
		{ServiceID: "rsi", Filters: "forum/4", Destination: models.Thread("y", "x")},
		{ServiceID: "rsi", Filters: "forum/2, forum/3"},
		{ServiceID: "rsi", Filters: "forum/5", Destination: models.Channel("x")},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("URL filters mismatch (-got +want):\n%s", diff)
	}

	n, err := db.ClearURLFilters(ctx, "g1", "sc", "rsi")
	if err != nil || n != 3 {
		t.Errorf("ClearURLFilters = %d, %v", n, err)
	}
}

func TestSeenPosts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if err := db.ReplaceSeenPosts(ctx, "sc", models.NewSet("A", "B")); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSeenPosts(ctx, "sc", models.NewSet("B", "C")); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSeenPosts(ctx, "d2", models.NewSet("X")); err != nil {
		t.Fatal(err)
	}

	seen, err := db.GetSeenPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]models.Set{
		"sc": models.NewSet("B", "C"),
		"d2": models.NewSet("X"),
	}
	if diff := cmp.Diff(seen, want); diff != "" {
		t.Errorf("seen posts mismatch (-got +want):\n%s", diff)
	}

	if _, err := db.AddFollow(ctx, "g1", "sc"); err != nil {
		t.Fatal(err)
	}
	n, err := db.PruneSeenPosts(ctx)
	if err != nil || n != 1 {
		t.Fatalf("PruneSeenPosts = %d, %v", n, err)
	}
	seen, _ = db.GetSeenPosts(ctx)
	if _, ok := seen["d2"]; ok {
		t.Error("seen posts of an unfollowed game survived")
	}
}

func TestEmptySeenPostsAreKept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if err := db.ReplaceSeenPosts(ctx, "sc", models.NewSet("A", "B")); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceSeenPosts(ctx, "sc", models.NewSet()); err != nil {
		t.Fatal(err)
	}

	seen, err := db.GetSeenPosts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := seen["sc"]
	if !ok {
		t.Fatal("empty seen-set read back as missing")
	}
	if len(got) != 0 {
		t.Errorf("seen-set = %v, want empty", got)
	}

	n, err := db.PruneSeenPosts(ctx)
	if err != nil || n != 0 {
		t.Fatalf("PruneSeenPosts = %d, %v", n, err)
	}
	seen, _ = db.GetSeenPosts(ctx)
	if _, ok := seen["sc"]; ok {
		t.Error("seen-set of an unfollowed game survived")
	}
}

func TestGames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testDB(t)

	if err := db.ReplaceGames(ctx, []models.Game{{ID: "sc", Name: "Star Citizen"}, {ID: "d2", Name: "Destiny 2"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceGames(ctx, []models.Game{{ID: "sc", Name: "Star Citizen"}, {ID: "bf", Name: "Battlefield"}}); err != nil {
		t.Fatal(err)
	}
	games, err := db.GetGames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Game{{ID: "bf", Name: "Battlefield"}, {ID: "sc", Name: "Star Citizen"}}
	if diff := cmp.Diff(games, want); diff != "" {
		t.Errorf("games mismatch (-got +want):\n%s", diff)
	}
}
