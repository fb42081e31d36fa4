package learn

import (
	"math/rand"
	"sort"

	"github.com/hpungsan/leitner/internal/card"
)

// Order returns a copy of cards arranged for a pass.
// Alphabetical is a stable ascending sort on Name in byte order; random is a
// uniform shuffle drawn from rng; any other sort keeps the given order.
func Order(cards []card.Card, st SortType, rng *rand.Rand) []card.Card {
	ordered := make([]card.Card, len(cards))
	copy(ordered, cards)

	switch st {
	case SortAlphabetical:
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Name < ordered[j].Name
		})
	case SortRandom:
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	return ordered
}
