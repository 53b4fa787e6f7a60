package utils

import (
	"strings"
	"testing"
)

func TestEncodeURLWithSpaces(t *testing.T) {
	got, err := EncodeURLWithSpaces("https://assets.fanart.tv/fanart/tv/121361/hdtvlogo/logo 00.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "logo%2000.png") {
		t.Errorf("expected encoded spaces in path, got %q", got)
	}

	got, err = EncodeURLWithSpaces("http://example.com/art?name=clear logo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(got, "?name=clear%20logo") {
		t.Errorf("expected encoded spaces in query, got %q", got)
	}
}

func TestEncodeURLWithSpacesPassthrough(t *testing.T) {
	in := "https://image.tmdb.org/t/p/w780/poster.jpg"
	got, err := EncodeURLWithSpaces(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != in {
		t.Errorf("already-clean url changed: %q", got)
	}
}
