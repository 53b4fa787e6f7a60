package models

import "time"

// WatchedEpisode is one watched episode inside a show snapshot.
type WatchedEpisode struct {
	Number        int       `json:"number"`
	Plays         int       `json:"plays"`
	LastWatchedAt time.Time `json:"last_watched_at,omitempty"`
}

// WatchedSeason groups the watched episodes of one season.
type WatchedSeason struct {
	Number   int              `json:"number"`
	Episodes []WatchedEpisode `json:"episodes,omitempty"`
}

// WatchedShow is the per-title entry of a watched snapshot. For movies the
// Seasons slice is empty and Plays carries the movie play count.
type WatchedShow struct {
	Plays         int             `json:"plays"`
	LastWatchedAt time.Time       `json:"last_watched_at,omitempty"`
	Seasons       []WatchedSeason `json:"seasons,omitempty"`
}

// EpisodePlays scans the show's seasons for the given episode and returns its
// play count. Found episodes with a zero recorded count report one play, since
// presence in the snapshot means the episode was watched. ok is false when the
// season or episode is not in the snapshot.
func (w WatchedShow) EpisodePlays(season, episode int) (int, bool) {
	for _, s := range w.Seasons {
		if s.Number != season {
			continue
		}
		for _, e := range s.Episodes {
			if e.Number != episode {
				continue
			}
			if e.Plays <= 0 {
				return 1, true
			}
			return e.Plays, true
		}
	}
	return 0, false
}

// WatchedEpisodeCount counts watched episodes across the show, or within one
// season when season is >= 0.
func (w WatchedShow) WatchedEpisodeCount(season int) int {
	count := 0
	for _, s := range w.Seasons {
		if season >= 0 && s.Number != season {
			continue
		}
		count += len(s.Episodes)
	}
	return count
}
