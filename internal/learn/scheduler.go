package learn

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

// Store persists sessions by name. Save writes the whole session at once.
// Load reports found=false, not an error, when no session has that name.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, name string) (s *Session, found bool, err error)
}

// CardSource resolves card names to full records, silently omitting unknown names.
type CardSource interface {
	Resolve(ctx context.Context, names []string) ([]card.Card, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand sets the random source used for shuffled passes.
func WithRand(rng *rand.Rand) Option {
	return func(sc *Scheduler) {
		if rng != nil {
			sc.rng = rng
		}
	}
}

// Scheduler drives sessions through their passes and saves every change
// before returning.
type Scheduler struct {
	store Store
	cards CardSource
	log   *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewScheduler creates a Scheduler. A nil logger discards records.
func NewScheduler(store Store, cards CardSource, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sc := &Scheduler{
		store: store,
		cards: cards,
		log:   logger.With("component", "learn"),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// GetOrCreate returns the session called name, creating and saving it first
// if it does not exist. cards, n and sort only apply on creation.
// A session that cannot be loaded back right after creation is an integrity fault.
func (sc *Scheduler) GetOrCreate(ctx context.Context, name string, cards []string, n int, sort SortType) (*Session, error) {
	existing, found, err := sc.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if found {
		return existing, nil
	}

	s, err := New(name, cards, n, sort)
	if err != nil {
		return nil, err
	}
	if err := sc.store.Save(ctx, s); err != nil {
		sc.log.Error("saving new session failed", "session", name, "error", err)
		return nil, errors.NewIntegrity(err.Error())
	}

	created, found, err := sc.store.Load(ctx, name)
	if err != nil {
		return nil, errors.NewIntegrity(err.Error())
	}
	if !found {
		sc.log.Error("new session missing after save", "session", name)
		return nil, errors.NewIntegrity(fmt.Sprintf("session %q not found after save", name))
	}

	sc.log.Info("session created", "session", name, "boxes", n, "cards", created.CardCount(), "sort", created.Sort.String())
	return created, nil
}

// Open begins or resumes a pass.
//
// A started session resumes its stored pass; box and sort are ignored and the
// pass is re-ordered (a random pass is shuffled again). Otherwise a new pass is
// built from box. A single box is ordered by sort; the full pass ("") is always
// box 1 ++ ... ++ box N and sort is ignored. An empty review list leaves the
// session untouched and returns an EMPTY_BOX error.
func (sc *Scheduler) Open(ctx context.Context, s *Session, box string, sort SortType) error {
	if s.Started && len(s.Pass.Cards) > 0 {
		return sc.resume(ctx, s)
	}

	var names []string
	if box == "" {
		names = s.FullPass()
		sort = SortUnset
	} else {
		b, ok := s.BoxByLabel(box)
		if !ok {
			return errors.NewInvalidRequest(fmt.Sprintf("unknown box %q: session %q has boxes %s..%s",
				box, s.Name, BoxLabel(0), BoxLabel(s.NumBoxes()-1)))
		}
		names = b.Cards
	}

	ordered, err := sc.arrange(ctx, names, sort)
	if err != nil {
		return err
	}
	if len(ordered) == 0 {
		sc.log.Info("nothing to review", "session", s.Name, "box", box)
		return errors.NewEmptyBox(box)
	}

	s.begin(Pass{Box: box, Sort: sort, Cards: ordered})
	if err := sc.store.Save(ctx, s); err != nil {
		return err
	}
	sc.log.Info("pass started", "session", s.Name, "box", box, "sort", sort.String(), "cards", len(ordered))
	return nil
}

func (sc *Scheduler) resume(ctx context.Context, s *Session) error {
	// Keep only cards the session still holds.
	present := make([]string, 0, len(s.Pass.Cards))
	for _, name := range s.Pass.Cards {
		if _, ok := s.BoxOf(name); ok {
			present = append(present, name)
		}
	}

	ordered, err := sc.arrange(ctx, present, s.Pass.Sort)
	if err != nil {
		return err
	}
	if len(ordered) == 0 {
		box := s.Pass.Box
		s.finish()
		if err := sc.store.Save(ctx, s); err != nil {
			return err
		}
		return errors.NewEmptyBox(box)
	}

	s.resume(ordered)
	if err := sc.store.Save(ctx, s); err != nil {
		return err
	}
	sc.log.Info("pass resumed", "session", s.Name, "box", s.Pass.Box, "progress", s.Progress, "cards", len(ordered))
	return nil
}

// arrange resolves names to cards and orders them, returning the original
// names of the cards that resolved.
func (sc *Scheduler) arrange(ctx context.Context, names []string, sort SortType) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}

	cards, err := sc.cards.Resolve(ctx, names)
	if err != nil {
		return nil, err
	}

	sc.mu.Lock()
	ordered := Order(cards, sort, sc.rng)
	sc.mu.Unlock()

	byNorm := make(map[string]string, len(names))
	for _, n := range names {
		byNorm[card.Normalize(n)] = n
	}
	result := make([]string, 0, len(ordered))
	for _, c := range ordered {
		if n, ok := byNorm[card.Normalize(c.Name)]; ok {
			result = append(result, n)
		}
	}
	return result, nil
}

// Correct promotes name one box and saves. Unknown cards are ignored.
func (sc *Scheduler) Correct(ctx context.Context, s *Session, name string) (Transition, bool, error) {
	t, ok := s.Correct(name)
	return sc.afterMove(ctx, s, "correct", t, ok)
}

// Wrong demotes name one box and saves. Unknown cards are ignored.
func (sc *Scheduler) Wrong(ctx context.Context, s *Session, name string) (Transition, bool, error) {
	t, ok := s.Wrong(name)
	return sc.afterMove(ctx, s, "wrong", t, ok)
}

func (sc *Scheduler) afterMove(ctx context.Context, s *Session, answer string, t Transition, ok bool) (Transition, bool, error) {
	if !ok {
		sc.log.Warn("answer for unknown card ignored", "session", s.Name, "card", t.Card, "answer", answer)
		return t, false, nil
	}
	if err := sc.store.Save(ctx, s); err != nil {
		return t, true, err
	}
	sc.log.Debug("card moved", "session", s.Name, "card", t.Card, "answer", answer, "from", t.From, "to", t.To)
	return t, true, nil
}

// Next advances the cursor and saves. completed is true when the pass ended.
func (sc *Scheduler) Next(ctx context.Context, s *Session) (completed bool, err error) {
	if !s.Active() {
		return false, errors.NewNotStarted(s.Name)
	}
	completed = s.Advance()
	if err := sc.store.Save(ctx, s); err != nil {
		return completed, err
	}
	if completed {
		sc.log.Info("pass completed", "session", s.Name)
	}
	return completed, nil
}

// Back moves the cursor to the previous card and saves.
func (sc *Scheduler) Back(ctx context.Context, s *Session) error {
	if !s.Active() {
		return errors.NewNotStarted(s.Name)
	}
	s.DecreaseProgress()
	return sc.store.Save(ctx, s)
}

// Suspend saves the session for later. A pass in progress stays in progress,
// so the next Open resumes it.
func (sc *Scheduler) Suspend(ctx context.Context, s *Session) error {
	if len(s.Pass.Cards) > 0 {
		s.Started = true
	}
	if err := sc.store.Save(ctx, s); err != nil {
		return err
	}
	sc.log.Info("session suspended", "session", s.Name, "progress", s.Progress, "started", s.Started)
	return nil
}
