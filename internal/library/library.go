// Package library implements the cross-article facet library: a persisted,
// deduplicated map of facet snapshots with directed honed-from provenance
// edges.
package library

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/inshell/hone/internal/kvstore"
)

// Key is the collection blob the library is stored under.
const Key = "facetLibrary"

// Version tags the persisted shape. Blobs with any other version are
// silently replaced with a fresh empty state on load.
const Version = 2

// Edge records that a facet was honed with content from another facet.
type Edge struct {
	FromFacetID string `json:"fromFacetId"`
	HonedAt     int64  `json:"honedAt"`
}

// Item is one persisted library entry.
type Item struct {
	FacetID   string `json:"facetId"`
	Title     string `json:"title"`
	BodyText  string `json:"bodyText"`
	UpdatedAt int64  `json:"updatedAt"`
	HonedFrom []Edge `json:"honedFrom"`
}

// State is the whole persisted library collection.
type State struct {
	Version    int             `json:"version"`
	UpdatedAt  int64           `json:"updatedAt"`
	FacetsByID map[string]Item `json:"facetsById"`
}

// UpsertInput carries the fields replaced by an upsert. UpdatedAt of zero
// means "now".
type UpsertInput struct {
	FacetID   string
	Title     string
	BodyText  string
	UpdatedAt int64
}

// Store persists library state as a single versioned JSON blob.
type Store struct {
	kv     kvstore.Provider
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a library store over the given provider.
func NewStore(kv kvstore.Provider, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// WithClock overrides the timestamp source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Empty returns a freshly initialized empty library state.
func (s *Store) Empty() State {
	return State{
		Version:    Version,
		UpdatedAt:  s.now().UnixMilli(),
		FacetsByID: map[string]Item{},
	}
}

// Load reads the persisted library. Absent, malformed, or version-mismatched
// data is never surfaced as an error: it is logged and replaced with an
// empty state.
func (s *Store) Load() State {
	raw, err := s.kv.Get(Key)
	if err != nil {
		return s.Empty()
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("library: discarding malformed blob", slog.String("error", err.Error()))
		return s.Empty()
	}
	if state.Version != Version || state.FacetsByID == nil {
		s.logger.Warn("library: discarding blob with unexpected shape", slog.Int("version", state.Version))
		return s.Empty()
	}
	return state
}

// Save persists state with a refreshed UpdatedAt and returns what was
// written.
func (s *Store) Save(state State) (State, error) {
	state.Version = Version
	state.UpdatedAt = s.now().UnixMilli()
	return state, s.persist(state)
}

func (s *Store) persist(state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("library: marshal: %w", err)
	}
	if err := s.kv.Set(Key, raw); err != nil {
		return fmt.Errorf("library: persist: %w", err)
	}
	return nil
}

// Upsert inserts or fully replaces the title/body/updatedAt of a facet,
// preserving any honed-from edges already recorded for it, then persists.
// The input state is not mutated.
func (s *Store) Upsert(state State, in UpsertInput) (State, error) {
	now := in.UpdatedAt
	if now == 0 {
		now = s.now().UnixMilli()
	}

	var edges []Edge
	if existing, ok := state.FacetsByID[in.FacetID]; ok {
		edges = existing.HonedFrom
	}
	if edges == nil {
		edges = []Edge{}
	}

	next := State{
		Version:    Version,
		UpdatedAt:  now,
		FacetsByID: cloneItems(state.FacetsByID),
	}
	next.FacetsByID[in.FacetID] = Item{
		FacetID:   in.FacetID,
		Title:     in.Title,
		BodyText:  in.BodyText,
		UpdatedAt: now,
		HonedFrom: edges,
	}
	return next, s.persist(next)
}

// AddHoneEdge records that target was honed with content from source.
// A missing target is a no-op returning the input state unchanged. Any prior
// edge from the same source is dropped before the new one is prepended, so
// there is at most one edge per source, ordered newest-first.
func (s *Store) AddHoneEdge(state State, targetFacetID, sourceFacetID string, honedAt int64) (State, error) {
	target, ok := state.FacetsByID[targetFacetID]
	if !ok {
		return state, nil
	}
	if honedAt == 0 {
		honedAt = s.now().UnixMilli()
	}

	edges := make([]Edge, 0, len(target.HonedFrom)+1)
	edges = append(edges, Edge{FromFacetID: sourceFacetID, HonedAt: honedAt})
	for _, e := range target.HonedFrom {
		if e.FromFacetID != sourceFacetID {
			edges = append(edges, e)
		}
	}

	next := State{
		Version:    Version,
		UpdatedAt:  honedAt,
		FacetsByID: cloneItems(state.FacetsByID),
	}
	target.HonedFrom = edges
	next.FacetsByID[targetFacetID] = target
	return next, s.persist(next)
}

// Prune removes entries whose facet id is absent from the live set and
// persists the result. It reports the removed ids; pruning nothing is not an
// error. This is an explicit maintenance operation, not part of Load.
func (s *Store) Prune(state State, live map[string]struct{}) (State, []string, error) {
	var removed []string
	next := State{
		Version:    Version,
		UpdatedAt:  s.now().UnixMilli(),
		FacetsByID: make(map[string]Item, len(state.FacetsByID)),
	}
	for id, item := range state.FacetsByID {
		if _, ok := live[id]; ok {
			next.FacetsByID[id] = item
		} else {
			removed = append(removed, id)
		}
	}
	if len(removed) == 0 {
		return state, nil, nil
	}
	return next, removed, s.persist(next)
}

func cloneItems(items map[string]Item) map[string]Item {
	out := make(map[string]Item, len(items))
	for id, item := range items {
		out[id] = item
	}
	return out
}
