package domain

import "strconv"

// HashString is the 32-bit string hash used to key every deterministic
// decision in a session: accumulate h = h*31 + code over the string, then
// take the absolute value. Persisted sessions replay against this exact
// function, so it must never change.
func HashString(s string) uint32 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	if h < 0 {
		h = -h
	}
	return uint32(h)
}

// seededRand is a mulberry32 generator. Same seed, same sequence, on every
// platform; it is the only PRNG compatible with replayed shuffles.
type seededRand struct {
	state uint32
}

func newSeededRand(seed string) *seededRand {
	return &seededRand{state: HashString(seed)}
}

// next returns a float64 in [0, 1).
func (r *seededRand) next() float64 {
	r.state += 0x6D2B79F5
	z := r.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	return float64(z^(z>>14)) / 4294967296.0
}

// Shuffle returns the deterministic permutation of AllCardIDs for seed,
// produced by a Fisher-Yates pass from the last index down to 1 with the
// swap partner drawn as floor(rand() * (i+1)).
func Shuffle(seed string) []string {
	ids := AllCardIDs()
	rng := newSeededRand(seed)
	for i := len(ids) - 1; i > 0; i-- {
		j := int(rng.next() * float64(i+1))
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}

// IsReversed reports the fixed orientation of cardID when drawn into
// drawIndex under seed. The same triple always yields the same answer;
// orientation is decided here once and never re-rolled.
func IsReversed(seed, cardID string, drawIndex int) bool {
	return HashString(seed+cardID+strconv.Itoa(drawIndex))%2 == 0
}

// ShuffledDeck is a session's live deck: the Shuffle(seed) sequence consumed
// by removing ids as they are drawn. Not safe for concurrent use; callers
// serialize access.
type ShuffledDeck struct {
	cards []string
}

// NewShuffledDeck builds the live deck for seed.
func NewShuffledDeck(seed string) *ShuffledDeck {
	return &ShuffledDeck{cards: Shuffle(seed)}
}

// Len returns the number of cards remaining.
func (d *ShuffledDeck) Len() int { return len(d.cards) }

// Cards returns a copy of the remaining sequence in order.
func (d *ShuffledDeck) Cards() []string {
	out := make([]string, len(d.cards))
	copy(out, d.cards)
	return out
}

// Contains reports whether cardID is still in the deck.
func (d *ShuffledDeck) Contains(cardID string) bool {
	for _, id := range d.cards {
		if id == cardID {
			return true
		}
	}
	return false
}

// DrawTop removes and returns the first remaining card.
func (d *ShuffledDeck) DrawTop() (string, error) {
	if len(d.cards) == 0 {
		return "", ErrDeckEmpty
	}
	id := d.cards[0]
	d.cards = d.cards[1:]
	return id, nil
}

// Draw removes cardID from the deck. It fails if the card was already drawn
// or never existed.
func (d *ShuffledDeck) Draw(cardID string) error {
	for i, id := range d.cards {
		if id == cardID {
			d.cards = append(d.cards[:i], d.cards[i+1:]...)
			return nil
		}
	}
	return ErrCardNotInDeck
}
