package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devtracker-bot/models"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func testClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	return NewClient(Config{
		BaseURL:      srv.URL + "/",
		Token:        "secret",
		Timeout:      time.Second,
		PostsTimeout: 200 * time.Millisecond,
	}, logrus.NewEntry(logger))
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(body))
	}
}

func TestListGames(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/games", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		jsonHandler(`{"data":[{"identifier":"sc","name":"Star Citizen"},{"identifier":"d2","name":"Destiny 2"}]}`)(w, r)
	})
	c := testClient(t, mux)

	got, err := c.ListGames(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Game{{ID: "sc", Name: "Star Citizen"}, {ID: "d2", Name: "Destiny 2"}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("games mismatch (-got +want):\n%s", diff)
	}
}

func TestListPosts(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.Handle("/sc/posts", jsonHandler(`{"data":[{
		"id":"p1","topic":"Patch notes","url":"https://forum/1","timestamp":1700000000,
		"content":"<p>hi</p>",
		"account":{"identifier":"dev","service":"rsi","developer":{"nick":"Dev","group":"CIG"}}
	}]}`))
	c := testClient(t, mux)

	got, err := c.ListPosts(context.Background(), "sc")
	if err != nil {
		t.Fatal(err)
	}
	want := []models.Post{{
		ID: "p1", Topic: "Patch notes", URL: "https://forum/1", Timestamp: 1700000000,
		Content: "<p>hi</p>",
		Account: models.Account{Identifier: "dev", Service: "rsi", Developer: models.Developer{Nick: "Dev", Group: "CIG"}},
	}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("posts mismatch (-got +want):\n%s", diff)
	}
}

func TestListServices(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.Handle("/sc/accounts", jsonHandler(`{"data":[
		{"identifier":"a","service":"rsi"},
		{"identifier":"b","service":"Reddit"},
		{"identifier":"c","service":"rsi"}
	]}`))
	c := testClient(t, mux)

	got, err := c.ListServices(context.Background(), "sc")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, []string{"Reddit", "rsi"}); diff != "" {
		t.Errorf("services mismatch (-got +want):\n%s", diff)
	}
}

func TestFetchErrorTags(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		handler http.HandlerFunc
		want    Tag
	}{
		"timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			want: TagTimeout,
		},
		"html instead of json": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>maintenance</html>"))
			},
			want: TagContentType,
		},
		"broken json": {
			handler: jsonHandler(`{"data":[`),
			want:    TagContentType,
		},
		"server error": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			want: TagError,
		},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := testClient(t, tc.handler)

			_, err := c.ListPosts(context.Background(), "sc")
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("got %v, want a *FetchError", err)
			}
			if fe.Tag != tc.want || fe.Game != "sc" {
				t.Errorf("got tag %q for game %q, want %q for sc", fe.Tag, fe.Game, tc.want)
			}
			if TagOf(err) != tc.want {
				t.Errorf("TagOf = %q, want %q", TagOf(err), tc.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	code, latency, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusServiceUnavailable || latency <= 0 {
		t.Errorf("Status = %d, %v", code, latency)
	}
}
