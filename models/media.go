package models

// Kind identifies the type of a media item.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindShow    Kind = "tvshow"
	KindSeason  Kind = "season"
	KindEpisode Kind = "episode"
)

// Valid reports whether k is one of the known media kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindMovie, KindShow, KindSeason, KindEpisode:
		return true
	}
	return false
}

// IsEpisodic reports whether k belongs to the show hierarchy below the show
// itself, meaning lookups must route through the parent show's identifiers.
func (k Kind) IsEpisodic() bool {
	return k == KindSeason || k == KindEpisode
}

// Well-known identifier namespaces. Season and episode items carry their
// parent show's ids under the "tvshow."-prefixed namespaces in addition to
// any ids of their own.
const (
	IDTMDB     = "tmdb"
	IDIMDB     = "imdb"
	IDTVDB     = "tvdb"
	IDTrakt    = "trakt"
	IDSlug     = "slug"
	IDLibrary  = "dbid"
	IDShowTMDB = "tvshow.tmdb"
	IDShowTVDB = "tvshow.tvdb"
)

// Well-known label keys.
const (
	LabelTitle         = "title"
	LabelOriginalTitle = "originaltitle"
	LabelYear          = "year"
	LabelPlot          = "plot"
	LabelRating        = "rating"
	LabelVotes         = "votes"
	LabelPremiered     = "premiered"
	LabelDuration      = "duration"
	LabelStatus        = "status"
	LabelGenre         = "genre"
	LabelPlaycount     = "playcount"
	LabelOverlay       = "overlay"
)

// IDSet maps a provider namespace to that provider's identifier for one item.
type IDSet map[string]string

// CatalogID returns the id to use for catalog lookups: the item's own catalog
// id for movies and shows, the parent show's for seasons and episodes.
func (ids IDSet) CatalogID(kind Kind) string {
	if kind.IsEpisodic() {
		return ids[IDShowTMDB]
	}
	return ids[IDTMDB]
}

// CastMember is one entry in an item's ordered cast list.
type CastMember struct {
	Name      string `json:"name"`
	Role      string `json:"role,omitempty"`
	Order     int    `json:"order"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Record is a normalized partial description of one media item from one
// source. Every field is optional: a nil map or slice means the source said
// nothing about that field, while a non-nil empty one means the source
// positively reported it empty.
type Record struct {
	Labels     map[string]any                 `json:"labels,omitempty"`
	IDs        IDSet                          `json:"ids,omitempty"`
	Art        map[string]string              `json:"art,omitempty"`
	Properties map[string]string              `json:"properties,omitempty"`
	Cast       []CastMember                   `json:"cast,omitempty"`
	StreamInfo map[string][]map[string]string `json:"stream_info,omitempty"`
}

// LabelString returns the named label as a string, or "" when absent.
func (r *Record) LabelString(key string) string {
	if r.Labels == nil {
		return ""
	}
	if s, ok := r.Labels[key].(string); ok {
		return s
	}
	return ""
}

// LabelInt returns the named label as an int, handling the numeric types a
// JSON cache round-trip can produce. ok is false when the label is absent or
// not numeric.
func (r *Record) LabelInt(key string) (int, bool) {
	if r.Labels == nil {
		return 0, false
	}
	switch v := r.Labels[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// SetLabel sets one label, allocating the map on first use.
func (r *Record) SetLabel(key string, value any) {
	if r.Labels == nil {
		r.Labels = map[string]any{}
	}
	r.Labels[key] = value
}

// SetID sets one identifier, allocating the map on first use.
func (r *Record) SetID(namespace, id string) {
	if id == "" {
		return
	}
	if r.IDs == nil {
		r.IDs = IDSet{}
	}
	r.IDs[namespace] = id
}

// Item is one browsable entry as seen by the presentation layer: baseline
// label and path plus the enrichment record the resolvers fill in.
// Season and Episode are nil when the numbers are unknown; zero is a valid
// season number (specials).
type Item struct {
	Kind    Kind   `json:"kind"`
	Label   string `json:"label"`
	Path    string `json:"path,omitempty"`
	Season  *int   `json:"season,omitempty"`
	Episode *int   `json:"episode,omitempty"`
	Record  Record `json:"record"`
}
