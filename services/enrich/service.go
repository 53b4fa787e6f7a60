package enrich

import (
	"context"
	"strconv"

	"github.com/sourcegraph/conc/pool"

	"mediameld/models"
	"mediameld/services/library"
)

// CatalogResolver fetches catalog details for one item.
type CatalogResolver interface {
	GetDetails(ctx context.Context, id string, kind models.Kind, season, episode int, cacheOnly bool) *models.Record
}

// HistoryResolver provides the watched snapshot and identifier translation.
type HistoryResolver interface {
	GetWatched(ctx context.Context, kind models.Kind) map[string]models.WatchedShow
	CrossResolve(ctx context.Context, fromProvider, id string, kind models.Kind) models.IDSet
}

// ArtworkResolver fetches art slots for one title.
type ArtworkResolver interface {
	GetArtwork(ctx context.Context, id string, kind models.Kind) map[string]string
}

// LibraryResolver finds items in the local library index.
type LibraryResolver interface {
	Lookup(q library.LookupQuery) int64
	GetDetails(localID int64, kind models.Kind) *models.Record
}

// Service orchestrates the resolvers. Any of them may be nil; a missing
// resolver simply contributes nothing, the same as an unreachable one.
type Service struct {
	Catalog CatalogResolver
	History HistoryResolver
	Artwork ArtworkResolver
	Library LibraryResolver
	Workers int
}

// NewService wires the aggregator.
func NewService(catalog CatalogResolver, history HistoryResolver, artwork ArtworkResolver, lib LibraryResolver, workers int) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		Catalog: catalog,
		History: history,
		Artwork: artwork,
		Library: lib,
		Workers: workers,
	}
}

// Session holds the watched snapshot shared read-only by every item resolved
// in one pass. The snapshot is fetched up front, once, so per-item watched
// lookups never fan out to the history upstream.
type Session struct {
	svc           *Service
	watchedMovies map[string]models.WatchedShow
	watchedShows  map[string]models.WatchedShow
}

// NewSession fetches the watched snapshot and returns a session ready to
// resolve items. An unreachable history service yields empty snapshots, not
// an error.
func (s *Service) NewSession(ctx context.Context) *Session {
	session := &Session{svc: s}
	if s.History != nil {
		session.watchedMovies = s.History.GetWatched(ctx, models.KindMovie)
		session.watchedShows = s.History.GetWatched(ctx, models.KindShow)
	}
	return session
}

// ResolveItems resolves a batch in one fresh session.
func (s *Service) ResolveItems(ctx context.Context, items []models.Item, cacheOnly bool) []models.Item {
	return s.NewSession(ctx).ResolveAll(ctx, items, cacheOnly)
}

// ResolveAll resolves independent items concurrently, bounded by the
// configured worker count to respect upstream rate limits.
func (ss *Session) ResolveAll(ctx context.Context, items []models.Item, cacheOnly bool) []models.Item {
	out := make([]models.Item, len(items))
	p := pool.New().WithMaxGoroutines(ss.svc.Workers)
	for i := range items {
		p.Go(func() {
			out[i] = ss.Resolve(ctx, items[i], cacheOnly)
		})
	}
	p.Wait()
	return out
}

// Resolve runs one item through the full pipeline: identifier resolution,
// detail fetch and merge, then the watched-state overlay. Every step is
// non-fatal; an item with no resolvable identifiers still comes back with
// its baseline fields.
func (ss *Session) Resolve(ctx context.Context, item models.Item, cacheOnly bool) models.Item {
	if !item.Kind.Valid() {
		return item
	}
	ss.resolveIdentifiers(ctx, &item)
	ss.mergeDetails(ctx, &item, cacheOnly)
	ss.applyWatched(&item)
	return item
}

// resolveIdentifiers fills in the local library id and the cross-provider
// ids reachable from what is already known.
func (ss *Session) resolveIdentifiers(ctx context.Context, item *models.Item) {
	ids := item.Record.IDs
	catalogID := ids.CatalogID(item.Kind)

	if ss.svc.Library != nil && !item.Kind.IsEpisodic() {
		year, _ := item.Record.LabelInt(models.LabelYear)
		localID := ss.svc.Library.Lookup(library.LookupQuery{
			Kind:          item.Kind,
			IMDBID:        ids[models.IDIMDB],
			TMDBID:        ids[models.IDTMDB],
			TVDBID:        ids[models.IDTVDB],
			OriginalTitle: item.Record.LabelString(models.LabelOriginalTitle),
			Title:         item.Record.LabelString(models.LabelTitle),
			Year:          year,
		})
		if localID > 0 {
			item.Record.SetID(models.IDLibrary, strconv.FormatInt(localID, 10))
		}
	}

	if ss.svc.History == nil || catalogID == "" {
		return
	}
	resolved := ss.svc.History.CrossResolve(ctx, models.IDTMDB, catalogID, item.Kind)
	for namespace, id := range resolved {
		if item.Kind.IsEpisodic() {
			// Cross-resolution for seasons and episodes answers with the
			// parent show's ids; only the show namespaces may carry those.
			switch namespace {
			case models.IDTMDB:
				namespace = models.IDShowTMDB
			case models.IDTVDB:
				namespace = models.IDShowTVDB
			default:
				continue
			}
		}
		if _, known := item.Record.IDs[namespace]; !known {
			item.Record.SetID(namespace, id)
		}
	}
}

// mergeDetails fetches catalog, library and artwork records and merges them
// into the item. Fields the item already carries always win; the library
// record outranks the remote catalog.
func (ss *Session) mergeDetails(ctx context.Context, item *models.Item, cacheOnly bool) {
	catalogID := item.Record.IDs.CatalogID(item.Kind)

	if ss.svc.Catalog != nil && catalogID != "" && ss.canAddress(item) {
		season, episode := numberOrZero(item.Season), numberOrZero(item.Episode)
		if d := ss.svc.Catalog.GetDetails(ctx, catalogID, item.Kind, season, episode, cacheOnly); d != nil {
			item.Record = Merge(item.Record, *d, PreferFirst)
		}
	}

	if ss.svc.Library != nil {
		if localID, err := strconv.ParseInt(item.Record.IDs[models.IDLibrary], 10, 64); err == nil {
			if lib := ss.svc.Library.GetDetails(localID, item.Kind); lib != nil {
				item.Record = Merge(*lib, item.Record, PreferFirst)
			}
		}
	}

	if ss.svc.Artwork != nil {
		if artID := ss.artworkID(item); artID != "" {
			if art := ss.svc.Artwork.GetArtwork(ctx, artID, item.Kind); art != nil {
				item.Record = Merge(item.Record, models.Record{Art: art}, PreferFirst)
			}
		}
	}
}

// canAddress reports whether the catalog can address this item: seasons need
// a season number, episodes both numbers.
func (ss *Session) canAddress(item *models.Item) bool {
	switch item.Kind {
	case models.KindSeason:
		return item.Season != nil
	case models.KindEpisode:
		return item.Season != nil && item.Episode != nil
	}
	return true
}

// artworkID picks the id the artwork service is addressed by: tmdb for
// movies, the (show's) tvdb id otherwise.
func (ss *Session) artworkID(item *models.Item) string {
	if item.Kind == models.KindMovie {
		return item.Record.IDs[models.IDTMDB]
	}
	if item.Kind.IsEpisodic() {
		if id := item.Record.IDs[models.IDShowTVDB]; id != "" {
			return id
		}
	}
	return item.Record.IDs[models.IDTVDB]
}

// applyWatched overlays play counts from the session snapshot. Movies and
// episodes read a single count; shows and seasons count watched episodes.
// Items with unknown season/episode numbers are left untouched.
func (ss *Session) applyWatched(item *models.Item) {
	switch item.Kind {
	case models.KindMovie:
		show, ok := ss.watchedMovies[item.Record.IDs[models.IDTMDB]]
		if !ok {
			return
		}
		plays := show.Plays
		if plays <= 0 {
			// Present in the snapshot means watched at least once.
			plays = 1
		}
		setWatched(item, plays)

	case models.KindEpisode:
		if item.Season == nil || item.Episode == nil {
			return
		}
		show, ok := ss.watchedShows[item.Record.IDs[models.IDShowTMDB]]
		if !ok {
			return
		}
		if plays, ok := show.EpisodePlays(*item.Season, *item.Episode); ok {
			setWatched(item, plays)
		}

	case models.KindShow:
		show, ok := ss.watchedShows[item.Record.IDs[models.IDTMDB]]
		if !ok {
			return
		}
		if count := show.WatchedEpisodeCount(-1); count > 0 {
			setWatched(item, count)
		}

	case models.KindSeason:
		if item.Season == nil {
			return
		}
		show, ok := ss.watchedShows[item.Record.IDs[models.IDShowTMDB]]
		if !ok {
			return
		}
		if count := show.WatchedEpisodeCount(*item.Season); count > 0 {
			setWatched(item, count)
		}
	}
}

func setWatched(item *models.Item, plays int) {
	item.Record.SetLabel(models.LabelPlaycount, plays)
	item.Record.SetLabel(models.LabelOverlay, true)
}

func numberOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
