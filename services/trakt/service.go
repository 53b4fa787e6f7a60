// Package trakt resolves watch history: the per-session watched snapshot,
// identifier cross-resolution and basic title details.
package trakt

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mediameld/models"
	"mediameld/services/cache"
	"mediameld/services/request"
)

const (
	apiBaseURL = "https://api.trakt.tv"
	apiVersion = "2"
)

// IDs holds the external identifiers Trakt reports for one title.
type IDs struct {
	Trakt int    `json:"trakt,omitempty"`
	Slug  string `json:"slug,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  int    `json:"tmdb,omitempty"`
	TVDB  int    `json:"tvdb,omitempty"`
}

// IDSet converts Trakt ids into the shared identifier namespaces.
func (ids IDs) IDSet() models.IDSet {
	out := models.IDSet{}
	if ids.Trakt != 0 {
		out[models.IDTrakt] = strconv.Itoa(ids.Trakt)
	}
	if ids.Slug != "" {
		out[models.IDSlug] = ids.Slug
	}
	if ids.IMDB != "" {
		out[models.IDIMDB] = ids.IMDB
	}
	if ids.TMDB != 0 {
		out[models.IDTMDB] = strconv.Itoa(ids.TMDB)
	}
	if ids.TVDB != 0 {
		out[models.IDTVDB] = strconv.Itoa(ids.TVDB)
	}
	return out
}

// Service is the history resolver.
type Service struct {
	fetcher *request.CachedFetcher
}

// NewService builds the resolver. accessToken may be empty for unauthenticated
// deployments; the watched snapshot then resolves to nothing.
func NewService(clientID, accessToken string, breaker *request.Breaker, store cache.Store, timeout time.Duration) *Service {
	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("trakt-api-version", apiVersion)
	headers.Set("trakt-api-key", clientID)
	if accessToken != "" {
		headers.Set("Authorization", "Bearer "+accessToken)
	}
	client := request.NewClient(request.ClientConfig{
		Name:    "trakt",
		BaseURL: apiBaseURL,
		Headers: headers,
		Timeout: timeout,
	}, breaker)
	return &Service{fetcher: request.NewCachedFetcher(client, store, 1, 14)}
}

type watchedEntry struct {
	Plays         int       `json:"plays"`
	LastWatchedAt time.Time `json:"last_watched_at"`
	Movie         *struct {
		IDs IDs `json:"ids"`
	} `json:"movie,omitempty"`
	Show *struct {
		IDs IDs `json:"ids"`
	} `json:"show,omitempty"`
	Seasons []struct {
		Number   int `json:"number"`
		Episodes []struct {
			Number        int       `json:"number"`
			Plays         int       `json:"plays"`
			LastWatchedAt time.Time `json:"last_watched_at"`
		} `json:"episodes"`
	} `json:"seasons,omitempty"`
}

// GetWatched fetches the whole watched snapshot for movies or shows in one
// call, keyed by catalog (TMDB) id. It is meant to be called once per
// resolution session, never per item. Short cache tier: play counts move.
func (s *Service) GetWatched(ctx context.Context, kind models.Kind) map[string]models.WatchedShow {
	mediaType := "movies"
	if kind != models.KindMovie {
		mediaType = "shows"
	}

	var entries []watchedEntry
	opts := request.RequestOptions{CacheName: "trakt.watched." + mediaType, CacheCombineName: true}
	if ok := s.fetcher.RequestShort(ctx, &entries, opts, []string{"sync", "watched", mediaType}, nil); !ok {
		return nil
	}

	snapshot := make(map[string]models.WatchedShow, len(entries))
	for _, e := range entries {
		var ids IDs
		switch {
		case e.Movie != nil:
			ids = e.Movie.IDs
		case e.Show != nil:
			ids = e.Show.IDs
		default:
			continue
		}
		if ids.TMDB == 0 {
			continue
		}
		ws := models.WatchedShow{Plays: e.Plays, LastWatchedAt: e.LastWatchedAt}
		for _, season := range e.Seasons {
			wsSeason := models.WatchedSeason{Number: season.Number}
			for _, ep := range season.Episodes {
				wsSeason.Episodes = append(wsSeason.Episodes, models.WatchedEpisode{
					Number:        ep.Number,
					Plays:         ep.Plays,
					LastWatchedAt: ep.LastWatchedAt,
				})
			}
			ws.Seasons = append(ws.Seasons, wsSeason)
		}
		snapshot[strconv.Itoa(ids.TMDB)] = ws
	}
	return snapshot
}

type searchResult struct {
	Type  string `json:"type"`
	Movie *struct {
		IDs IDs `json:"ids"`
	} `json:"movie,omitempty"`
	Show *struct {
		IDs IDs `json:"ids"`
	} `json:"show,omitempty"`
}

// CrossResolve translates an identifier from one provider's namespace into
// every namespace Trakt knows. Seasons and episodes resolve through their
// parent show: the caller passes the show's id, and the result is show-level.
func (s *Service) CrossResolve(ctx context.Context, fromProvider, id string, kind models.Kind) models.IDSet {
	if id == "" {
		return nil
	}
	searchType := "movie"
	if kind != models.KindMovie {
		searchType = "show"
	}

	var results []searchResult
	params := url.Values{"type": {searchType}}
	if ok := s.fetcher.RequestLong(ctx, &results, request.RequestOptions{}, []string{"search", fromProvider, id}, params); !ok {
		return nil
	}
	for _, r := range results {
		switch {
		case r.Movie != nil:
			return r.Movie.IDs.IDSet()
		case r.Show != nil:
			return r.Show.IDs.IDSet()
		}
	}
	return nil
}

type detailsPayload struct {
	Title      string    `json:"title"`
	Year       int       `json:"year"`
	Overview   string    `json:"overview"`
	Released   string    `json:"released"`
	FirstAired time.Time `json:"first_aired"`
	Runtime    int       `json:"runtime"`
	Status     string    `json:"status"`
	Rating     float64   `json:"rating"`
	Votes      int       `json:"votes"`
	IDs        IDs       `json:"ids"`
}

// GetDetails fetches movie- or show-level details on the long cache tier.
// Seasons and episodes resolve to their parent show's record.
func (s *Service) GetDetails(ctx context.Context, id string, kind models.Kind, _, _ int, cacheOnly bool) *models.Record {
	if id == "" {
		return nil
	}
	section := "movies"
	if kind != models.KindMovie {
		section = "shows"
	}

	var p detailsPayload
	opts := request.RequestOptions{CacheOnly: cacheOnly}
	if ok := s.fetcher.RequestLong(ctx, &p, opts, []string{section, id}, url.Values{"extended": {"full"}}); !ok {
		return nil
	}
	if p.Title == "" && p.IDs.Trakt == 0 {
		return nil
	}

	rec := &models.Record{IDs: p.IDs.IDSet()}
	if p.Title != "" {
		rec.SetLabel(models.LabelTitle, p.Title)
	}
	if p.Year > 0 {
		rec.SetLabel(models.LabelYear, p.Year)
	}
	if p.Overview != "" {
		rec.SetLabel(models.LabelPlot, p.Overview)
	}
	if p.Released != "" {
		rec.SetLabel(models.LabelPremiered, p.Released)
	} else if !p.FirstAired.IsZero() {
		rec.SetLabel(models.LabelPremiered, p.FirstAired.Format("2006-01-02"))
	}
	if p.Runtime > 0 {
		rec.SetLabel(models.LabelDuration, p.Runtime*60)
	}
	if p.Status != "" {
		rec.SetLabel(models.LabelStatus, p.Status)
	}
	if p.Rating > 0 {
		rec.SetLabel(models.LabelRating, p.Rating)
	}
	if p.Votes > 0 {
		rec.SetLabel(models.LabelVotes, p.Votes)
	}
	return rec
}
