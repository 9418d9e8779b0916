package domain_test

import (
	"fmt"
	"testing"

	"github.com/dungdc40/tarot-nextjs-sub000/internal/domain"
)

func TestAllCardIDs_CanonicalOrder(t *testing.T) {
	ids := domain.AllCardIDs()
	if len(ids) != domain.DeckSize {
		t.Fatalf("expected %d cards, got %d", domain.DeckSize, len(ids))
	}
	if ids[0] != "the-fool" {
		t.Errorf("expected the-fool first, got %s", ids[0])
	}
	if ids[21] != "the-world" {
		t.Errorf("expected the-world at index 21, got %s", ids[21])
	}
	if ids[22] != "ace-of-wands" {
		t.Errorf("expected ace-of-wands at index 22, got %s", ids[22])
	}
	if ids[77] != "king-of-pentacles" {
		t.Errorf("expected king-of-pentacles last, got %s", ids[77])
	}

	// No duplicates.
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate card id: %s", id)
		}
		seen[id] = true
	}
}

func TestAllCardIDs_ReturnsCopy(t *testing.T) {
	a := domain.AllCardIDs()
	a[0] = "mutated"
	if domain.AllCardIDs()[0] != "the-fool" {
		t.Fatal("AllCardIDs must return a fresh copy")
	}
}

func TestShuffle_IsPermutation(t *testing.T) {
	for _, seed := range []string{"42", "1700000000000", "", "seed-with-text"} {
		shuffled := domain.Shuffle(seed)
		if len(shuffled) != domain.DeckSize {
			t.Fatalf("seed %q: expected %d cards, got %d", seed, domain.DeckSize, len(shuffled))
		}
		seen := make(map[string]bool, len(shuffled))
		for _, id := range shuffled {
			if !domain.KnownCardID(id) {
				t.Errorf("seed %q: unknown id %s", seed, id)
			}
			if seen[id] {
				t.Errorf("seed %q: duplicate id %s", seed, id)
			}
			seen[id] = true
		}
	}
}

func TestShuffle_Deterministic(t *testing.T) {
	for _, seed := range []string{"42", "abc", "1712345678901"} {
		first := domain.Shuffle(seed)
		for run := 0; run < 3; run++ {
			again := domain.Shuffle(seed)
			for i := range first {
				if first[i] != again[i] {
					t.Fatalf("seed %q run %d: index %d differs (%s vs %s)", seed, run, i, first[i], again[i])
				}
			}
		}
	}
}

func TestShuffle_DifferentSeedsDiffer(t *testing.T) {
	a := domain.Shuffle("42")
	b := domain.Shuffle("43")
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	if same == len(a) {
		t.Fatal("seeds 42 and 43 produced identical permutations")
	}
}

func TestIsReversed_Stable(t *testing.T) {
	for _, seed := range []string{"42", "1700000000000"} {
		for _, id := range []string{"the-fool", "death", "king-of-pentacles"} {
			for idx := 0; idx < 5; idx++ {
				first := domain.IsReversed(seed, id, idx)
				for run := 0; run < 10; run++ {
					if domain.IsReversed(seed, id, idx) != first {
						t.Fatalf("IsReversed(%q, %q, %d) not stable", seed, id, idx)
					}
				}
			}
		}
	}
}

func TestIsReversed_RoughlyBalanced(t *testing.T) {
	reversed := 0
	total := 0
	for s := 0; s < 50; s++ {
		seed := fmt.Sprintf("seed-%d", s)
		for i, id := range domain.AllCardIDs() {
			total++
			if domain.IsReversed(seed, id, i) {
				reversed++
			}
		}
	}
	ratio := float64(reversed) / float64(total)
	if ratio < 0.40 || ratio > 0.60 {
		t.Fatalf("reversed ratio %.3f outside [0.40, 0.60] over %d draws", ratio, total)
	}
}

func TestHashString_Deterministic(t *testing.T) {
	inputs := []string{"", "42", "the-fool", "42the-fool0"}
	for _, in := range inputs {
		first := domain.HashString(in)
		if domain.HashString(in) != first {
			t.Errorf("HashString(%q) not stable", in)
		}
	}
	if domain.HashString("a") == domain.HashString("b") {
		t.Error("distinct one-char inputs should hash differently")
	}
}

func TestShuffledDeck_DrawRemovesExactlyOne(t *testing.T) {
	deck := domain.NewShuffledDeck("42")
	target := deck.Cards()[10]

	if err := deck.Draw(target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deck.Len() != domain.DeckSize-1 {
		t.Fatalf("expected %d cards, got %d", domain.DeckSize-1, deck.Len())
	}
	if deck.Contains(target) {
		t.Fatalf("card %s still in deck after draw", target)
	}
	if err := deck.Draw(target); err != domain.ErrCardNotInDeck {
		t.Fatalf("expected ErrCardNotInDeck on double draw, got %v", err)
	}
}

func TestShuffledDeck_DrawTopFollowsShuffleOrder(t *testing.T) {
	deck := domain.NewShuffledDeck("42")
	want := domain.Shuffle("42")

	for i := 0; i < 3; i++ {
		id, err := deck.DrawTop()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if id != want[i] {
			t.Fatalf("draw %d: expected %s, got %s", i, want[i], id)
		}
	}
}

func TestShuffledDeck_DrawTopEmpty(t *testing.T) {
	deck := domain.NewShuffledDeck("42")
	for i := 0; i < domain.DeckSize; i++ {
		if _, err := deck.DrawTop(); err != nil {
			t.Fatalf("draw %d: unexpected error: %v", i, err)
		}
	}
	if _, err := deck.DrawTop(); err != domain.ErrDeckEmpty {
		t.Fatalf("expected ErrDeckEmpty, got %v", err)
	}
}
