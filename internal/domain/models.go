package domain

// RNG abstracts random number generation for deterministic testing.
type RNG interface {
	// Intn returns a non-negative random int in [0, n).
	Intn(n int) int
}

// Orientation represents the orientation of a drawn tarot card.
type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

// Card is immutable reference data for one card in the catalog.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Arcana   string   `json:"arcana"`
	Suit     Suit     `json:"suit,omitempty"`
	Keywords []string `json:"keywords"`
	Upright  string   `json:"upright"`
	Reversed string   `json:"reversed"`
	Love     string   `json:"love,omitempty"`
	Career   string   `json:"career,omitempty"`
}

// Meaning returns the short meaning matching orientation.
func (c Card) Meaning(reversed bool) string {
	if reversed {
		return c.Reversed
	}
	return c.Upright
}

// Catalog is the full card reference set keyed by id.
type Catalog struct {
	Cards map[string]Card
}

// Get looks up a card by id.
func (cat Catalog) Get(id string) (Card, error) {
	c, ok := cat.Cards[id]
	if !ok {
		return Card{}, ErrUnknownCard
	}
	return c, nil
}

// SpreadPosition is one named slot in a spread.
type SpreadPosition struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Role  string `json:"role"`
}

// Spread is an ordered list of positions a reading will fill, one card each.
// Immutable once produced; length 1 to 10.
type Spread struct {
	Positions []SpreadPosition
}

// Size returns the number of positions.
func (s Spread) Size() int { return len(s.Positions) }

// ValidateSpread checks the position-count bounds.
func ValidateSpread(s Spread) error {
	if len(s.Positions) < 1 || len(s.Positions) > 10 {
		return ErrSpreadSize
	}
	return nil
}

// DrawnCard is a card fixed into a position the moment the user confirmed a
// selection. Orientation never changes after creation.
type DrawnCard struct {
	CardID         string `json:"card_id"`
	Name           string `json:"name"`
	IsReversed     bool   `json:"reversed"`
	Position       int    `json:"position"`
	PositionLabel  string `json:"position_label"`
	PositionRole   string `json:"position_role"`
	Interpretation string `json:"interpretation,omitempty"`
}

// Orientation returns the card's orientation as a display value.
func (c DrawnCard) Orientation() Orientation {
	if c.IsReversed {
		return Reversed
	}
	return Upright
}
