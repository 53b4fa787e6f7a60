// Package fanart resolves additional artwork slots from the fanart.tv
// webservice.
package fanart

import (
	"context"
	"log"
	"time"

	"mediameld/models"
	"mediameld/services/cache"
	"mediameld/services/request"
	"mediameld/utils"
)

const apiBaseURL = "https://webservice.fanart.tv/v3"

// Service is the artwork resolver.
type Service struct {
	fetcher *request.CachedFetcher
}

// NewService builds the resolver. The api key travels as a query credential.
func NewService(apiKey string, breaker *request.Breaker, store cache.Store, timeout time.Duration) *Service {
	client := request.NewClient(request.ClientConfig{
		Name:     "fanart",
		BaseURL:  apiBaseURL,
		KeyParam: "api_key=" + apiKey,
		Timeout:  timeout,
	}, breaker)
	return &Service{fetcher: request.NewCachedFetcher(client, store, 1, 14)}
}

type artEntry struct {
	URL  string `json:"url"`
	Lang string `json:"lang"`
}

// slotMap maps fanart.tv art type names to the art slots the presentation
// layer understands, per section.
var movieSlots = map[string]string{
	"movieposter":     "poster",
	"moviebackground": "fanart",
	"hdmovielogo":     "clearlogo",
	"hdmovieclearart": "clearart",
	"moviebanner":     "banner",
	"moviethumb":      "landscape",
}

var showSlots = map[string]string{
	"tvposter":       "poster",
	"showbackground": "fanart",
	"hdtvlogo":       "clearlogo",
	"hdclearart":     "clearart",
	"tvbanner":       "banner",
	"tvthumb":        "landscape",
}

// GetArtwork fetches every known art slot for one title on the long cache
// tier. Movies are addressed by TMDB id, shows (and their seasons/episodes)
// by the show's TVDB id. Returns nil when the service has nothing.
func (s *Service) GetArtwork(ctx context.Context, id string, kind models.Kind) map[string]string {
	if id == "" {
		return nil
	}
	section := "movies"
	slots := movieSlots
	if kind != models.KindMovie {
		section = "tv"
		slots = showSlots
	}

	var payload map[string]any
	if ok := s.fetcher.RequestLong(ctx, &payload, request.RequestOptions{}, []string{section, id}, nil); !ok {
		return nil
	}

	art := map[string]string{}
	for artType, slot := range slots {
		entries := decodeEntries(payload[artType])
		if best := pickEntry(entries); best != "" {
			art[slot] = best
		}
	}
	if len(art) == 0 {
		return nil
	}
	return art
}

func decodeEntries(raw any) []artEntry {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	entries := make([]artEntry, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := artEntry{}
		entry.URL, _ = m["url"].(string)
		entry.Lang, _ = m["lang"].(string)
		if entry.URL != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// pickEntry prefers English then textless artwork, falling back to the first
// entry. Some fanart URLs carry raw spaces; they are encoded before use.
func pickEntry(entries []artEntry) string {
	pick := ""
	for _, preferred := range []string{"en", "00", ""} {
		for _, e := range entries {
			if preferred != "" && e.Lang != preferred {
				continue
			}
			pick = e.URL
			break
		}
		if pick != "" {
			break
		}
	}
	if pick == "" {
		return ""
	}
	encoded, err := utils.EncodeURLWithSpaces(pick)
	if err != nil {
		log.Printf("[fanart] skipping malformed artwork url %q: %v", pick, err)
		return ""
	}
	return encoded
}
