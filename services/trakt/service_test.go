package trakt

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"mediameld/models"
	"mediameld/services/cache"
	"mediameld/services/request"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func newTestService(t *testing.T, rt roundTripFunc) *Service {
	t.Helper()
	headers := http.Header{}
	headers.Set("trakt-api-version", apiVersion)
	headers.Set("trakt-api-key", "test-client")
	client := request.NewClient(request.ClientConfig{
		Name:      "trakt",
		BaseURL:   apiBaseURL,
		Headers:   headers,
		Transport: rt,
	}, request.NewBreaker())
	return &Service{fetcher: request.NewCachedFetcher(client, cache.NewMemoryStore(), 1, 14)}
}

func TestGetWatchedShows(t *testing.T) {
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/sync/watched/shows" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if req.Header.Get("trakt-api-key") != "test-client" {
			t.Fatal("missing trakt-api-key header")
		}
		return jsonResponse(200, `[
			{
				"plays": 12,
				"last_watched_at": "2024-01-15T21:00:00.000Z",
				"show": {"title":"Game of Thrones","ids":{"trakt":1390,"tmdb":1399,"tvdb":121361,"imdb":"tt0944947"}},
				"seasons": [
					{"number": 2, "episodes": [{"number": 5, "plays": 3}, {"number": 6, "plays": 1}]}
				]
			}
		]`), nil
	})

	snapshot := svc.GetWatched(context.Background(), models.KindShow)
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 show, got %d", len(snapshot))
	}
	show, ok := snapshot["1399"]
	if !ok {
		t.Fatal("expected snapshot keyed by tmdb id")
	}
	if plays, ok := show.EpisodePlays(2, 5); !ok || plays != 3 {
		t.Fatalf("expected s2e5 plays 3, got %d (ok=%v)", plays, ok)
	}
	if _, ok := show.EpisodePlays(2, 9); ok {
		t.Fatal("expected s2e9 absent")
	}
}

func TestGetWatchedMovies(t *testing.T) {
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/sync/watched/movies" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(200, `[
			{"plays": 2, "movie": {"title":"The Matrix","ids":{"tmdb":603}}},
			{"plays": 1, "movie": {"title":"No TMDB id","ids":{"trakt":42}}}
		]`), nil
	})

	snapshot := svc.GetWatched(context.Background(), models.KindMovie)
	if len(snapshot) != 1 {
		t.Fatalf("entries without a tmdb id must be skipped, got %d", len(snapshot))
	}
	if snapshot["603"].Plays != 2 {
		t.Fatalf("expected 2 plays, got %d", snapshot["603"].Plays)
	}
}

func TestGetWatchedUnavailable(t *testing.T) {
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `{}`), nil
	})

	if snapshot := svc.GetWatched(context.Background(), models.KindMovie); snapshot != nil {
		t.Fatal("expected nil snapshot when the upstream is down")
	}
}

func TestCrossResolveEpisodeUsesShowNamespace(t *testing.T) {
	var gotPath, gotType string
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		gotType = req.URL.Query().Get("type")
		return jsonResponse(200, `[
			{"type":"show","show":{"title":"Game of Thrones","ids":{"trakt":1390,"slug":"game-of-thrones","tmdb":1399,"tvdb":121361,"imdb":"tt0944947"}}}
		]`), nil
	})

	ids := svc.CrossResolve(context.Background(), "tmdb", "1399", models.KindEpisode)
	if gotPath != "/search/tmdb/1399" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotType != "show" {
		t.Fatalf("episodes must cross-resolve as shows, got type=%q", gotType)
	}
	if ids[models.IDTrakt] != "1390" || ids[models.IDSlug] != "game-of-thrones" || ids[models.IDIMDB] != "tt0944947" || ids[models.IDTVDB] != "121361" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestCrossResolveEmptyID(t *testing.T) {
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected for an empty id")
		return nil, nil
	})

	if ids := svc.CrossResolve(context.Background(), "tmdb", "", models.KindMovie); ids != nil {
		t.Fatalf("expected nil, got %v", ids)
	}
}

func TestGetDetailsShow(t *testing.T) {
	svc := newTestService(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/shows/game-of-thrones" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(200, `{
			"title": "Game of Thrones",
			"year": 2011,
			"overview": "Noble families vie for the Iron Throne.",
			"first_aired": "2011-04-18T01:00:00.000Z",
			"runtime": 60,
			"status": "ended",
			"rating": 9.0,
			"votes": 110000,
			"ids": {"trakt":1390,"slug":"game-of-thrones","tmdb":1399}
		}`), nil
	})

	rec := svc.GetDetails(context.Background(), "game-of-thrones", models.KindShow, 0, 0, false)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.LabelString(models.LabelTitle) != "Game of Thrones" {
		t.Fatalf("unexpected title %q", rec.LabelString(models.LabelTitle))
	}
	if rec.LabelString(models.LabelPremiered) != "2011-04-18" {
		t.Fatalf("unexpected premiered %q", rec.LabelString(models.LabelPremiered))
	}
	if rec.IDs[models.IDTMDB] != "1399" {
		t.Fatalf("unexpected ids %v", rec.IDs)
	}
}
