// Package cards loads the embedded 78-card reference catalog.
package cards

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
)

//go:embed data/cards.json
var cardFS embed.FS

// EmbeddedStore serves the catalog from the embedded JSON file.
type EmbeddedStore struct {
	once    sync.Once
	catalog domain.Catalog
	err     error
}

func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

func (s *EmbeddedStore) init() {
	raw, err := cardFS.ReadFile("data/cards.json")
	if err != nil {
		s.err = fmt.Errorf("read embedded catalog: %w", err)
		return
	}
	var cards []domain.Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		s.err = fmt.Errorf("parse embedded catalog: %w", err)
		return
	}

	byID := make(map[string]domain.Card, len(cards))
	for _, c := range cards {
		if !domain.KnownCardID(c.ID) {
			s.err = fmt.Errorf("catalog card %q is not in the deck universe", c.ID)
			return
		}
		byID[c.ID] = c
	}
	// Every id the deck engine can produce must resolve.
	for _, id := range domain.AllCardIDs() {
		if _, ok := byID[id]; !ok {
			s.err = fmt.Errorf("catalog is missing card %q", id)
			return
		}
	}
	s.catalog = domain.Catalog{Cards: byID}
}

func (s *EmbeddedStore) Catalog(_ context.Context) (domain.Catalog, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return domain.Catalog{}, s.err
	}
	return s.catalog, nil
}
