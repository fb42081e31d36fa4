package card

// Card is a question/answer index card.
// Other parts of the system refer to a card by its Name; the ID is storage-only.
type Card struct {
	// ID is a ULID that uniquely identifies this card
	ID string `json:"id"`

	// Name is the display name and the identifier used by learn sessions
	Name string `json:"name"`

	// NameNorm is the normalized name used for uniqueness and lookups
	NameNorm string `json:"-"`

	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords,omitempty"`
	Links    []Link   `json:"links,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Link points from a term in a card's text to another card.
type Link struct {
	Term   string `json:"term"`
	Target string `json:"target"`
}

// Deck is a named working set of cards that can be learned.
type Deck struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	NameNorm  string   `json:"-"`
	Cards     []string `json:"cards"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// Names returns the names of the given cards, in order.
func Names(cards []Card) []string {
	names := make([]string, len(cards))
	for i, c := range cards {
		names[i] = c.Name
	}
	return names
}
