package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"mediameld/models"
)

// itemResolver resolves items against the configured providers.
type itemResolver interface {
	ResolveItems(ctx context.Context, items []models.Item, cacheOnly bool) []models.Item
}

type EnrichHandler struct {
	Resolver itemResolver
}

func NewEnrichHandler(resolver itemResolver) *EnrichHandler {
	return &EnrichHandler{Resolver: resolver}
}

type resolveRequest struct {
	Items     []models.Item `json:"items"`
	CacheOnly bool          `json:"cacheOnly,omitempty"`
}

type resolveResponse struct {
	Items []models.Item `json:"items"`
}

// ResolveBatch resolves a batch of items in one pass. Items that cannot be
// fully resolved come back with whatever was gathered; resolver degradation
// never turns into a 5xx.
func (h *EnrichHandler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resolveResponse{Items: []models.Item{}})
		return
	}

	resolved := h.Resolver.ResolveItems(r.Context(), req.Items, req.CacheOnly)
	log.Printf("[enrich] resolved batch of %d items", len(resolved))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolveResponse{Items: resolved})
}

// GetItem resolves one item addressed by kind and catalog id. Season and
// episode numbers come from query parameters for episodic kinds.
func (h *EnrichHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind := models.Kind(strings.ToLower(vars["kind"]))
	id := strings.TrimSpace(vars["id"])

	if !kind.Valid() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown media kind"})
		return
	}
	if id == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "id is required"})
		return
	}

	item := models.Item{Kind: kind}
	if kind.IsEpisodic() {
		item.Record.SetID(models.IDShowTMDB, id)
		season, ok := queryInt(r, "season")
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "season is required"})
			return
		}
		item.Season = &season
		if kind == models.KindEpisode {
			episode, ok := queryInt(r, "episode")
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "episode is required"})
				return
			}
			item.Episode = &episode
		}
	} else {
		item.Record.SetID(models.IDTMDB, id)
	}

	cacheOnly := strings.EqualFold(r.URL.Query().Get("cacheOnly"), "true")
	resolved := h.Resolver.ResolveItems(r.Context(), []models.Item{item}, cacheOnly)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resolved[0])
}

// RegisterRoutes attaches the enrichment endpoints to the router.
func (h *EnrichHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/items/resolve", h.ResolveBatch).Methods(http.MethodPost)
	r.HandleFunc("/api/items/{kind}/{id}", h.GetItem).Methods(http.MethodGet)
}

func queryInt(r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
