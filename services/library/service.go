// Package library looks items up in the local library index: a sqlite
// database written by the library scanner, read-only from this process.
package library

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"mediameld/models"
)

const librarySchema = `
CREATE TABLE IF NOT EXISTS items (
	id             INTEGER PRIMARY KEY,
	kind           TEXT NOT NULL,
	title          TEXT NOT NULL,
	original_title TEXT,
	year           INTEGER,
	imdb_id        TEXT,
	tmdb_id        TEXT,
	tvdb_id        TEXT,
	playcount      INTEGER NOT NULL DEFAULT 0,
	plot           TEXT,
	rating         REAL,
	premiered      TEXT,
	path           TEXT
);
CREATE INDEX IF NOT EXISTS idx_items_imdb ON items(imdb_id);
CREATE INDEX IF NOT EXISTS idx_items_tmdb ON items(tmdb_id);
CREATE INDEX IF NOT EXISTS idx_items_title ON items(kind, title, year);

CREATE TABLE IF NOT EXISTS stream_details (
	item_id  INTEGER NOT NULL REFERENCES items(id),
	category TEXT NOT NULL,
	detail   TEXT NOT NULL
);
`

// LookupQuery carries whatever identifying facts are already known about an
// item. Empty fields are skipped.
type LookupQuery struct {
	Kind          models.Kind
	IMDBID        string
	TMDBID        string
	TVDBID        string
	OriginalTitle string
	Title         string
	Year          int
}

// Service resolves library ids and library-held details.
type Service struct {
	db *sql.DB
}

// NewService opens the library index at path.
func NewService(path string) (*Service, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open library db: %w", err)
	}
	if _, err := db.Exec(librarySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create library schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// Lookup finds the local id for an item, trying the strongest evidence
// first: imdb id, then catalog id, then tvdb id, then original title with
// year, then title with year. Zero means no match.
func (s *Service) Lookup(q LookupQuery) int64 {
	type attempt struct {
		where string
		args  []any
	}
	attempts := make([]attempt, 0, 5)
	if q.IMDBID != "" {
		attempts = append(attempts, attempt{"imdb_id = ?", []any{q.IMDBID}})
	}
	if q.TMDBID != "" {
		attempts = append(attempts, attempt{"tmdb_id = ?", []any{q.TMDBID}})
	}
	if q.TVDBID != "" {
		attempts = append(attempts, attempt{"tvdb_id = ?", []any{q.TVDBID}})
	}
	if q.OriginalTitle != "" && q.Year > 0 {
		attempts = append(attempts, attempt{"original_title = ? AND year = ?", []any{q.OriginalTitle, q.Year}})
	}
	if q.Title != "" && q.Year > 0 {
		attempts = append(attempts, attempt{"title = ? AND year = ?", []any{q.Title, q.Year}})
	}

	for _, a := range attempts {
		where := a.where
		args := a.args
		if q.Kind.Valid() {
			where += " AND kind = ?"
			args = append(args, string(q.Kind))
		}
		var id int64
		err := s.db.QueryRow("SELECT id FROM items WHERE "+where+" LIMIT 1", args...).Scan(&id)
		if err == nil {
			return id
		}
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[library] lookup: %v", err)
			return 0
		}
	}
	return 0
}

// GetDetails returns the library's record for a local id. Only movies and
// shows are indexed with full detail rows; other kinds return nil.
func (s *Service) GetDetails(localID int64, kind models.Kind) *models.Record {
	if localID <= 0 || kind.IsEpisodic() {
		return nil
	}

	var (
		title     string
		original  sql.NullString
		year      sql.NullInt64
		imdbID    sql.NullString
		tmdbID    sql.NullString
		tvdbID    sql.NullString
		playcount int
		plot      sql.NullString
		rating    sql.NullFloat64
		premiered sql.NullString
		path      sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT title, original_title, year, imdb_id, tmdb_id, tvdb_id,
		       playcount, plot, rating, premiered, path
		FROM items WHERE id = ? AND kind = ?`, localID, string(kind)).
		Scan(&title, &original, &year, &imdbID, &tmdbID, &tvdbID,
			&playcount, &plot, &rating, &premiered, &path)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("[library] details %d: %v", localID, err)
		}
		return nil
	}

	rec := &models.Record{}
	rec.SetLabel(models.LabelTitle, title)
	if original.Valid && original.String != "" {
		rec.SetLabel(models.LabelOriginalTitle, original.String)
	}
	if year.Valid && year.Int64 > 0 {
		rec.SetLabel(models.LabelYear, int(year.Int64))
	}
	if plot.Valid && plot.String != "" {
		rec.SetLabel(models.LabelPlot, plot.String)
	}
	if rating.Valid && rating.Float64 > 0 {
		rec.SetLabel(models.LabelRating, rating.Float64)
	}
	if premiered.Valid && premiered.String != "" {
		rec.SetLabel(models.LabelPremiered, premiered.String)
	}
	if playcount > 0 {
		rec.SetLabel(models.LabelPlaycount, playcount)
	}
	rec.SetID(models.IDLibrary, fmt.Sprintf("%d", localID))
	if imdbID.Valid {
		rec.SetID(models.IDIMDB, imdbID.String)
	}
	if tmdbID.Valid {
		rec.SetID(models.IDTMDB, tmdbID.String)
	}
	if tvdbID.Valid {
		rec.SetID(models.IDTVDB, tvdbID.String)
	}
	if path.Valid && path.String != "" {
		if rec.Properties == nil {
			rec.Properties = map[string]string{}
		}
		rec.Properties["path"] = path.String
	}

	rec.StreamInfo = s.streamInfo(localID)
	return rec
}

// streamInfo loads the per-category stream detail blocks for one item.
func (s *Service) streamInfo(localID int64) map[string][]map[string]string {
	rows, err := s.db.Query(`SELECT category, detail FROM stream_details WHERE item_id = ?`, localID)
	if err != nil {
		log.Printf("[library] stream details %d: %v", localID, err)
		return nil
	}
	defer rows.Close()

	var info map[string][]map[string]string
	for rows.Next() {
		var category, detail string
		if err := rows.Scan(&category, &detail); err != nil {
			log.Printf("[library] stream details %d: %v", localID, err)
			return info
		}
		block := map[string]string{}
		if err := json.Unmarshal([]byte(detail), &block); err != nil {
			log.Printf("[library] stream detail %d (%s): %v", localID, category, err)
			continue
		}
		if info == nil {
			info = map[string][]map[string]string{}
		}
		category = strings.ToLower(category)
		info[category] = append(info[category], block)
	}
	return info
}

// Seed inserts one item row, returning its id. Intended for tests and local
// tooling; the production index is written by the scanner.
func (s *Service) Seed(item SeedItem) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO items (kind, title, original_title, year, imdb_id, tmdb_id, tvdb_id, playcount, plot, rating, premiered, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.Kind), item.Title, item.OriginalTitle, item.Year,
		item.IMDBID, item.TMDBID, item.TVDBID, item.Playcount,
		item.Plot, item.Rating, item.Premiered, item.Path)
	if err != nil {
		return 0, fmt.Errorf("seed library item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for category, blocks := range item.StreamInfo {
		for _, block := range blocks {
			detail, err := json.Marshal(block)
			if err != nil {
				return 0, err
			}
			if _, err := s.db.Exec(`INSERT INTO stream_details (item_id, category, detail) VALUES (?, ?, ?)`,
				id, category, string(detail)); err != nil {
				return 0, fmt.Errorf("seed stream detail: %w", err)
			}
		}
	}
	return id, nil
}

// SeedItem is the writable shape Seed accepts.
type SeedItem struct {
	Kind          models.Kind
	Title         string
	OriginalTitle string
	Year          int
	IMDBID        string
	TMDBID        string
	TVDBID        string
	Playcount     int
	Plot          string
	Rating        float64
	Premiered     string
	Path          string
	StreamInfo    map[string][]map[string]string
}
