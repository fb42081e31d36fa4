package learn

import (
	"fmt"
	"slices"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

// DefaultBoxes is the box count used when none is configured.
const DefaultBoxes = 5

// Box is one graduated Leitner box.
type Box struct {
	Label string   `json:"label"`
	Cards []string `json:"cards"`
}

// Pass is the ordered review list of the pass currently in progress.
// An empty Box means the pass covers all boxes.
type Pass struct {
	Box   string   `json:"box,omitempty"`
	Sort  SortType `json:"sort"`
	Cards []string `json:"cards,omitempty"`
}

// Transition records a card moving between boxes. From and To are 1-based;
// they are equal when the card was already at an outer box.
type Transition struct {
	Card string `json:"card"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// Session is the persisted state of one Leitner run over one working set.
// Every card name belongs to exactly one box. The number of boxes is fixed at creation.
type Session struct {
	Name      string   `json:"name"`
	Boxes     []Box    `json:"boxes"`
	Sort      SortType `json:"sort"`
	Progress  int      `json:"progress"`
	Started   bool     `json:"started"`
	Pass      Pass     `json:"pass"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// BoxLabel returns the label of the box at 0-based index i.
func BoxLabel(i int) string {
	return fmt.Sprintf("Box %d", i+1)
}

// New creates a session with n boxes and every card in box 1.
// Duplicate card names are dropped. An unset sort becomes SortRandom.
func New(name string, cards []string, n int, sort SortType) (*Session, error) {
	if name == "" {
		return nil, errors.NewInvalidRequest("session name must not be empty")
	}
	if n < 1 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("number of boxes must be at least 1, got %d", n))
	}
	if sort == SortUnset || !sort.isValid() {
		sort = SortRandom
	}

	boxes := make([]Box, n)
	for i := range boxes {
		boxes[i] = Box{Label: BoxLabel(i), Cards: []string{}}
	}
	boxes[0].Cards = card.Unique(cards)

	return &Session{
		Name:  name,
		Boxes: boxes,
		Sort:  sort,
	}, nil
}

// NumBoxes returns the number of boxes.
func (s *Session) NumBoxes() int {
	return len(s.Boxes)
}

// CardCount returns the number of cards across all boxes.
func (s *Session) CardCount() int {
	n := 0
	for _, b := range s.Boxes {
		n += len(b.Cards)
	}
	return n
}

// BoxOf returns the 0-based index of the box holding name.
func (s *Session) BoxOf(name string) (int, bool) {
	for i, b := range s.Boxes {
		if slices.Contains(b.Cards, name) {
			return i, true
		}
	}
	return 0, false
}

// BoxByLabel returns the box with the given label.
func (s *Session) BoxByLabel(label string) (*Box, bool) {
	for i := range s.Boxes {
		if s.Boxes[i].Label == label {
			return &s.Boxes[i], true
		}
	}
	return nil, false
}

// Correct moves name to the next box. A card in the last box stays there.
// ok is false when no box holds the card; the session is then unchanged.
func (s *Session) Correct(name string) (Transition, bool) {
	return s.move(name, +1)
}

// Wrong moves name to the previous box. A card in box 1 stays there.
// ok is false when no box holds the card; the session is then unchanged.
func (s *Session) Wrong(name string) (Transition, bool) {
	return s.move(name, -1)
}

func (s *Session) move(name string, delta int) (Transition, bool) {
	from, ok := s.BoxOf(name)
	if !ok {
		return Transition{Card: name}, false
	}
	to := from + delta
	if to < 0 || to >= len(s.Boxes) {
		return Transition{Card: name, From: from + 1, To: from + 1}, true
	}

	src := &s.Boxes[from]
	idx := slices.Index(src.Cards, name)
	src.Cards = slices.Delete(src.Cards, idx, idx+1)
	s.Boxes[to].Cards = append(s.Boxes[to].Cards, name)

	return Transition{Card: name, From: from + 1, To: to + 1}, true
}

// FullPass returns box 1 ++ box 2 ++ ... ++ box N.
// Cards needing the most repetition come first.
func (s *Session) FullPass() []string {
	result := make([]string, 0, s.CardCount())
	for _, b := range s.Boxes {
		result = append(result, b.Cards...)
	}
	return result
}

// Active reports whether a pass is in progress.
func (s *Session) Active() bool {
	return s.Started && len(s.Pass.Cards) > 0
}

// Current returns the card under the progress cursor.
func (s *Session) Current() (string, bool) {
	if !s.Active() || s.Progress < 0 || s.Progress >= len(s.Pass.Cards) {
		return "", false
	}
	return s.Pass.Cards[s.Progress], true
}

// IncreaseProgress advances the cursor by one, never past the last card of the pass.
func (s *Session) IncreaseProgress() {
	if s.Progress < len(s.Pass.Cards)-1 {
		s.Progress++
	}
}

// DecreaseProgress moves the cursor back by one, never below 0.
func (s *Session) DecreaseProgress() {
	if s.Progress > 0 {
		s.Progress--
	}
}

// Advance moves to the next card. Advancing from the last card completes
// the pass: progress resets to 0, started becomes false and the pass is cleared.
func (s *Session) Advance() (completed bool) {
	if s.Progress < len(s.Pass.Cards)-1 {
		s.IncreaseProgress()
		return false
	}
	s.finish()
	return true
}

// Percent returns the share of the pass already behind the cursor, 0-100.
func (s *Session) Percent() int {
	if len(s.Pass.Cards) == 0 {
		return 0
	}
	return s.Progress * 100 / len(s.Pass.Cards)
}

// begin installs pass as the active review list, starting at its first card.
// A full pass in box order keeps the session's last chosen sort.
func (s *Session) begin(pass Pass) {
	s.Pass = pass
	if pass.Sort != SortUnset {
		s.Sort = pass.Sort
	}
	s.Progress = 0
	s.Started = true
}

// resume installs a rebuilt list for the stored pass, keeping the cursor
// within it.
func (s *Session) resume(cards []string) {
	s.Pass.Cards = cards
	if s.Progress >= len(cards) {
		s.Progress = len(cards) - 1
	}
	if s.Progress < 0 {
		s.Progress = 0
	}
}

func (s *Session) finish() {
	s.Progress = 0
	s.Started = false
	s.Pass = Pass{Sort: s.Sort}
}
