package domain

// Suit identifies one of the four minor arcana suits.
type Suit string

const (
	SuitWands     Suit = "wands"
	SuitCups      Suit = "cups"
	SuitSwords    Suit = "swords"
	SuitPentacles Suit = "pentacles"
)

// majorArcana lists the 22 trumps in canonical order (0 through XXI).
var majorArcana = []string{
	"the-fool",
	"the-magician",
	"the-high-priestess",
	"the-empress",
	"the-emperor",
	"the-hierophant",
	"the-lovers",
	"the-chariot",
	"strength",
	"the-hermit",
	"wheel-of-fortune",
	"justice",
	"the-hanged-man",
	"death",
	"temperance",
	"the-devil",
	"the-tower",
	"the-star",
	"the-moon",
	"the-sun",
	"judgement",
	"the-world",
}

// minorRanks is the within-suit order: ace through ten, then the court.
var minorRanks = []string{
	"ace", "two", "three", "four", "five", "six", "seven",
	"eight", "nine", "ten", "page", "knight", "queen", "king",
}

var minorSuits = []Suit{SuitWands, SuitCups, SuitSwords, SuitPentacles}

// DeckSize is the number of cards in the full tarot deck.
const DeckSize = 78

// AllCardIDs returns the 78 card ids in canonical order: the major arcana
// first, then each suit ace through king. The returned slice is a fresh copy.
func AllCardIDs() []string {
	ids := make([]string, 0, DeckSize)
	ids = append(ids, majorArcana...)
	for _, suit := range minorSuits {
		for _, rank := range minorRanks {
			ids = append(ids, rank+"-of-"+string(suit))
		}
	}
	return ids
}

var knownIDs = func() map[string]struct{} {
	m := make(map[string]struct{}, DeckSize)
	for _, id := range AllCardIDs() {
		m[id] = struct{}{}
	}
	return m
}()

// KnownCardID reports whether id names a card in the 78-card universe.
func KnownCardID(id string) bool {
	_, ok := knownIDs[id]
	return ok
}
