// Package tmdb resolves catalog metadata for movies, shows, seasons and
// episodes from the TMDB API.
package tmdb

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediameld/models"
	"mediameld/services/cache"
	"mediameld/services/request"
)

const (
	apiBaseURL   = "https://api.themoviedb.org/3"
	imageBaseURL = "https://image.tmdb.org/t/p"

	posterSize = "w780"
	fanartSize = "original"
	thumbSize  = "w342"
)

// Service is the catalog resolver.
type Service struct {
	fetcher  *request.CachedFetcher
	language string
}

// NewService builds the resolver sharing the process breaker and cache store.
func NewService(apiKey, language string, breaker *request.Breaker, store cache.Store, timeout time.Duration) *Service {
	if language == "" {
		language = "en-US"
	}
	client := request.NewClient(request.ClientConfig{
		Name:          "tmdb",
		BaseURL:       apiBaseURL,
		KeyParam:      "api_key=" + url.QueryEscape(apiKey),
		Timeout:       timeout,
		RatePerSecond: 40,
	}, breaker)
	return &Service{
		fetcher:  request.NewCachedFetcher(client, store, 1, 14),
		language: language,
	}
}

// catalogType maps a media kind to TMDB's type vocabulary. Seasons and
// episodes live under the "tv" namespace of their parent show.
func catalogType(kind models.Kind) string {
	if kind == models.KindMovie {
		return "movie"
	}
	return "tv"
}

type detailsPayload struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
	AirDate       string  `json:"air_date"`
	Status        string  `json:"status"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Runtime       int     `json:"runtime"`
	PosterPath    string  `json:"poster_path"`
	BackdropPath  string  `json:"backdrop_path"`
	StillPath     string  `json:"still_path"`
	Genres        []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Cast []castPayload `json:"cast"`
	} `json:"credits"`
	GuestStars  []castPayload `json:"guest_stars"`
	ExternalIDs struct {
		IMDBID string `json:"imdb_id"`
		TVDBID int64  `json:"tvdb_id"`
	} `json:"external_ids"`
}

type castPayload struct {
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

// GetDetails fetches the catalog record for one item on the long cache tier.
// Season and episode lookups are issued under the parent show's id; season
// and episode are ignored for movies and shows. A nil record means the
// catalog had nothing (or was unreachable).
func (s *Service) GetDetails(ctx context.Context, id string, kind models.Kind, season, episode int, cacheOnly bool) *models.Record {
	if id == "" || !kind.Valid() {
		return nil
	}
	args := []string{catalogType(kind), id}
	if kind == models.KindSeason || kind == models.KindEpisode {
		args = append(args, "season", strconv.Itoa(season))
	}
	if kind == models.KindEpisode {
		args = append(args, "episode", strconv.Itoa(episode))
	}
	params := url.Values{
		"language":           {s.language},
		"append_to_response": {"credits,external_ids"},
	}

	var payload detailsPayload
	if ok := s.fetcher.RequestLong(ctx, &payload, request.RequestOptions{CacheOnly: cacheOnly}, args, params); !ok {
		return nil
	}
	if payload.ID == 0 {
		return nil
	}
	return s.buildRecord(&payload, id, kind)
}

func (s *Service) buildRecord(p *detailsPayload, showID string, kind models.Kind) *models.Record {
	rec := &models.Record{}

	title := p.Title
	if title == "" {
		title = p.Name
	}
	if title != "" {
		rec.SetLabel(models.LabelTitle, title)
	}
	original := p.OriginalTitle
	if original == "" {
		original = p.OriginalName
	}
	if original != "" {
		rec.SetLabel(models.LabelOriginalTitle, original)
	}
	if p.Overview != "" {
		rec.SetLabel(models.LabelPlot, p.Overview)
	}
	premiered := p.ReleaseDate
	if premiered == "" {
		premiered = p.FirstAirDate
	}
	if premiered == "" {
		premiered = p.AirDate
	}
	if premiered != "" {
		rec.SetLabel(models.LabelPremiered, premiered)
		if year := parseYear(premiered); year > 0 {
			rec.SetLabel(models.LabelYear, year)
		}
	}
	if p.Status != "" {
		rec.SetLabel(models.LabelStatus, p.Status)
	}
	if p.VoteAverage > 0 {
		rec.SetLabel(models.LabelRating, p.VoteAverage)
	}
	if p.VoteCount > 0 {
		rec.SetLabel(models.LabelVotes, p.VoteCount)
	}
	if p.Runtime > 0 {
		rec.SetLabel(models.LabelDuration, p.Runtime*60)
	}
	if len(p.Genres) > 0 {
		names := make([]string, 0, len(p.Genres))
		for _, g := range p.Genres {
			names = append(names, g.Name)
		}
		rec.SetLabel(models.LabelGenre, strings.Join(names, " / "))
	}

	if kind.IsEpisodic() {
		// Seasons and episodes keep their parent show's catalog id under the
		// show namespace. Their payload's external_ids are their own
		// season/episode-level ids, which must not land in the tvshow.*
		// namespaces — artwork lookups are addressed by the show's tvdb id.
		rec.SetID(models.IDShowTMDB, showID)
	} else {
		rec.SetID(models.IDTMDB, strconv.FormatInt(p.ID, 10))
		if p.ExternalIDs.TVDBID > 0 {
			rec.SetID(models.IDTVDB, strconv.FormatInt(p.ExternalIDs.TVDBID, 10))
		}
	}
	rec.SetID(models.IDIMDB, p.ExternalIDs.IMDBID)

	if p.PosterPath != "" {
		rec.Art = map[string]string{"poster": imageBaseURL + "/" + posterSize + p.PosterPath}
	}
	if p.BackdropPath != "" {
		if rec.Art == nil {
			rec.Art = map[string]string{}
		}
		rec.Art["fanart"] = imageBaseURL + "/" + fanartSize + p.BackdropPath
	}
	if p.StillPath != "" {
		if rec.Art == nil {
			rec.Art = map[string]string{}
		}
		rec.Art["thumb"] = imageBaseURL + "/" + thumbSize + p.StillPath
	}

	cast := p.Credits.Cast
	if len(cast) == 0 {
		cast = p.GuestStars
	}
	for _, c := range cast {
		member := models.CastMember{Name: c.Name, Role: c.Character, Order: c.Order}
		if c.ProfilePath != "" {
			member.Thumbnail = imageBaseURL + "/" + thumbSize + c.ProfilePath
		}
		rec.Cast = append(rec.Cast, member)
	}

	return rec
}

type searchPayload struct {
	Results []struct {
		ID           int64  `json:"id"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

// Search finds the catalog id for a title, optionally narrowed by year.
// Results are cached on the short tier since search rankings shift.
func (s *Service) Search(ctx context.Context, query string, year int, kind models.Kind) string {
	if query == "" {
		return ""
	}
	params := url.Values{
		"language": {s.language},
		"query":    {query},
	}
	if year > 0 {
		if kind == models.KindMovie {
			params.Set("year", strconv.Itoa(year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(year))
		}
	}

	var payload searchPayload
	if ok := s.fetcher.RequestShort(ctx, &payload, request.RequestOptions{}, []string{"search", catalogType(kind)}, params); !ok {
		return ""
	}
	if len(payload.Results) == 0 {
		return ""
	}
	return strconv.FormatInt(payload.Results[0].ID, 10)
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
