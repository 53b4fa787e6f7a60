package library

import (
	"path/filepath"
	"testing"

	"mediameld/models"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("failed to open library: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestLookupPriorityOrder(t *testing.T) {
	svc := setupTestService(t)

	// Two entries that would both match a title lookup; only one carries the
	// imdb id.
	first, err := svc.Seed(SeedItem{Kind: models.KindMovie, Title: "The Matrix", Year: 1999, IMDBID: "tt0133093", TMDBID: "603"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	second, err := svc.Seed(SeedItem{Kind: models.KindMovie, Title: "The Matrix", Year: 1999})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got := svc.Lookup(LookupQuery{Kind: models.KindMovie, IMDBID: "tt0133093", Title: "The Matrix", Year: 1999})
	if got != first {
		t.Fatalf("expected imdb match %d, got %d", first, got)
	}

	// Without the stronger ids the title+year fallback finds the first row.
	got = svc.Lookup(LookupQuery{Kind: models.KindMovie, Title: "The Matrix", Year: 1999})
	if got != first && got != second {
		t.Fatalf("expected a title match, got %d", got)
	}

	// An id that matches nothing falls through the weaker evidence.
	got = svc.Lookup(LookupQuery{Kind: models.KindMovie, IMDBID: "tt9999999", Title: "The Matrix", Year: 1999})
	if got == 0 {
		t.Fatal("expected fallback to title+year")
	}
}

func TestLookupNoMatch(t *testing.T) {
	svc := setupTestService(t)

	if got := svc.Lookup(LookupQuery{Kind: models.KindMovie, Title: "Unknown", Year: 2000}); got != 0 {
		t.Fatalf("expected no match, got %d", got)
	}
	if got := svc.Lookup(LookupQuery{}); got != 0 {
		t.Fatalf("expected no match for an empty query, got %d", got)
	}
}

func TestGetDetails(t *testing.T) {
	svc := setupTestService(t)

	id, err := svc.Seed(SeedItem{
		Kind:      models.KindMovie,
		Title:     "The Matrix",
		Year:      1999,
		IMDBID:    "tt0133093",
		TMDBID:    "603",
		Playcount: 2,
		Rating:    8.7,
		Path:      "/media/movies/The Matrix (1999).mkv",
		StreamInfo: map[string][]map[string]string{
			"video": {{"codec": "h264", "width": "1920", "height": "1080"}},
			"audio": {{"codec": "dts", "channels": "6"}},
		},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	rec := svc.GetDetails(id, models.KindMovie)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.LabelString(models.LabelTitle) != "The Matrix" {
		t.Fatalf("unexpected title %q", rec.LabelString(models.LabelTitle))
	}
	if plays, ok := rec.LabelInt(models.LabelPlaycount); !ok || plays != 2 {
		t.Fatalf("unexpected playcount %d", plays)
	}
	if rec.IDs[models.IDLibrary] == "" {
		t.Fatal("expected a library id")
	}
	if rec.Properties["path"] != "/media/movies/The Matrix (1999).mkv" {
		t.Fatalf("unexpected path %q", rec.Properties["path"])
	}
	if len(rec.StreamInfo["video"]) != 1 || rec.StreamInfo["video"][0]["codec"] != "h264" {
		t.Fatalf("unexpected stream info %v", rec.StreamInfo)
	}
}

func TestGetDetailsEpisodicUnsupported(t *testing.T) {
	svc := setupTestService(t)

	if rec := svc.GetDetails(1, models.KindEpisode); rec != nil {
		t.Fatal("episode details are not indexed")
	}
}
