package ops

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/db"
	"github.com/hpungsan/leitner/internal/errors"
	"github.com/hpungsan/leitner/internal/learn"
)

// Algorithm selects how a deck is learned.
type Algorithm string

const (
	AlgorithmLeitner Algorithm = "leitner" // N graduated boxes
	AlgorithmRandom  Algorithm = "random"  // one box, shuffled full pass
)

// ParseAlgorithm parses an algorithm name. Empty means leitner.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmLeitner:
		return AlgorithmLeitner, nil
	case AlgorithmRandom:
		return AlgorithmRandom, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("algorithm must be one of: leitner, random (got %q)", s))
}

// Label is the display name, also used as the session name suffix.
func (a Algorithm) Label() string {
	if a == AlgorithmRandom {
		return "Random"
	}
	return "Leitner"
}

// SessionName returns the learn session name for a deck and algorithm.
func SessionName(deck string, a Algorithm) string {
	return deck + a.Label()
}

// Learner runs learn sessions over stored decks and cards.
// Calls are serialized so concurrent front ends see consistent sessions.
type Learner struct {
	db    *sql.DB
	cfg   *config.Config
	store *db.SessionStore
	sched *learn.Scheduler
	log   *slog.Logger

	mu sync.Mutex
}

// NewLearner creates a Learner. A nil logger discards records.
func NewLearner(database *sql.DB, cfg *config.Config, logger *slog.Logger, opts ...learn.Option) *Learner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	store := db.NewSessionStore(database)
	return &Learner{
		db:    database,
		cfg:   cfg,
		store: store,
		sched: learn.NewScheduler(store, db.NewCardResolver(database), logger, opts...),
		log:   logger,
	}
}

// SessionRef names a learn session, either directly or by deck and algorithm.
type SessionRef struct {
	Session   string // full session name, e.g. "BioBoxLeitner"
	Deck      string // used when Session is empty
	Algorithm string // default: leitner
}

// StartInput contains parameters for the Start operation.
type StartInput struct {
	Deck      string // required
	Algorithm string // leitner (default) or random
	Box       string // "Box 1".."Box N"; empty for a full pass. Leitner only.
	Sort      string // alphabetical or random; orders a single box, default from config. Leitner only.
}

// CardView is a card as presented during a pass.
type CardView struct {
	Name     string      `json:"name"`
	Question string      `json:"question"`
	Answer   string      `json:"answer,omitempty"`
	Keywords []string    `json:"keywords,omitempty"`
	Links    []card.Link `json:"links,omitempty"`
}

// ShowOutput describes the current position in a pass.
type ShowOutput struct {
	Session  string    `json:"session"`
	Pass     string    `json:"pass"`
	Sort     string    `json:"sort"`
	Box      string    `json:"box"`
	Position int       `json:"position"`
	Total    int       `json:"total"`
	Percent  int       `json:"percent"`
	Card     *CardView `json:"card"`
}

// Start begins a pass over a deck, or resumes the pass left in progress.
// The session is created on first use with every deck card in box 1.
func (l *Learner) Start(ctx context.Context, input StartInput) (*ShowOutput, error) {
	algo, err := ParseAlgorithm(input.Algorithm)
	if err != nil {
		return nil, err
	}

	sort, ok := learn.ParseSortType(input.Sort)
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("sort must be one of: alphabetical, random (got %q)", input.Sort))
	}

	boxes := l.cfg.LeitnerBoxes
	if boxes < 1 {
		boxes = learn.DefaultBoxes
	}
	box := strings.TrimSpace(input.Box)
	switch {
	case algo == AlgorithmRandom:
		// One box, always shuffled.
		boxes, box, sort = 1, learn.BoxLabel(0), learn.SortRandom
	case box != "" && sort == learn.SortUnset:
		// Unknown config values parse as box order.
		sort, _ = learn.ParseSortType(l.cfg.DefaultSort)
	}

	deck, err := GetDeck(ctx, l.db, input.Deck)
	if err != nil {
		return nil, err
	}
	if len(deck.Cards) == 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("deck %q has no cards", deck.Name))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.sched.GetOrCreate(ctx, SessionName(deck.Name, algo), deck.Cards, boxes, sort)
	if err != nil {
		return nil, err
	}
	if err := l.sched.Open(ctx, s, box, sort); err != nil {
		return nil, err
	}
	return l.show(ctx, s, false)
}

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	SessionRef
	IncludeAnswer bool
}

// Show returns the current card of the active pass.
func (l *Learner) Show(ctx context.Context, input ShowInput) (*ShowOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, input.SessionRef)
	if err != nil {
		return nil, err
	}
	if !s.Active() {
		return nil, errors.NewNotStarted(s.Name)
	}
	return l.show(ctx, s, input.IncludeAnswer)
}

// AnswerInput contains parameters for the Answer operation.
type AnswerInput struct {
	SessionRef
	Correct bool
}

// AnswerOutput contains the result of the Answer operation.
type AnswerOutput struct {
	Transition learn.Transition `json:"transition"`
	Completed  bool             `json:"completed"`
	Next       *ShowOutput      `json:"next,omitempty"`
}

// Answer grades the current card. A correct answer promotes the card and
// moves on to the next one. A wrong answer demotes the card and stays on it.
func (l *Learner) Answer(ctx context.Context, input AnswerInput) (*AnswerOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, input.SessionRef)
	if err != nil {
		return nil, err
	}
	current, ok := s.Current()
	if !ok {
		return nil, errors.NewNotStarted(s.Name)
	}

	out := &AnswerOutput{}
	if input.Correct {
		out.Transition, _, err = l.sched.Correct(ctx, s, current)
		if err != nil {
			return nil, err
		}
		out.Completed, err = l.sched.Next(ctx, s)
		if err != nil {
			return nil, err
		}
	} else {
		out.Transition, _, err = l.sched.Wrong(ctx, s, current)
		if err != nil {
			return nil, err
		}
	}

	if !out.Completed {
		if out.Next, err = l.show(ctx, s, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NavOutput contains the result of the Next and Back operations.
type NavOutput struct {
	Completed bool        `json:"completed"`
	Current   *ShowOutput `json:"current,omitempty"`
}

// Next moves to the next card. Moving past the last card completes the pass.
func (l *Learner) Next(ctx context.Context, ref SessionRef) (*NavOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	completed, err := l.sched.Next(ctx, s)
	if err != nil {
		return nil, err
	}
	out := &NavOutput{Completed: completed}
	if !completed {
		if out.Current, err = l.show(ctx, s, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Back moves to the previous card, staying on the first one.
func (l *Learner) Back(ctx context.Context, ref SessionRef) (*NavOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := l.sched.Back(ctx, s); err != nil {
		return nil, err
	}
	current, err := l.show(ctx, s, false)
	if err != nil {
		return nil, err
	}
	return &NavOutput{Current: current}, nil
}

// StopOutput contains the result of the Stop operation.
type StopOutput struct {
	Session  string `json:"session"`
	Started  bool   `json:"started"`
	Progress int    `json:"progress"`
}

// Stop suspends the session. A pass in progress is resumed by the next Start.
func (l *Learner) Stop(ctx context.Context, ref SessionRef) (*StopOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := l.sched.Suspend(ctx, s); err != nil {
		return nil, err
	}
	return &StopOutput{Session: s.Name, Started: s.Started, Progress: s.Progress}, nil
}

// BoxStatus is one box of a session overview.
type BoxStatus struct {
	Label string   `json:"label"`
	Count int      `json:"count"`
	Cards []string `json:"cards"`
}

// StatusOutput is an overview of a learn session.
type StatusOutput struct {
	Session   string      `json:"session"`
	Sort      string      `json:"sort"`
	Started   bool        `json:"started"`
	Progress  int         `json:"progress"`
	Percent   int         `json:"percent"`
	CardCount int         `json:"card_count"`
	Boxes     []BoxStatus `json:"boxes"`
	UpdatedAt int64       `json:"updated_at"`
}

// Status reports every box of a session with its cards.
func (l *Learner) Status(ctx context.Context, ref SessionRef) (*StatusOutput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, err := l.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return status(s), nil
}

// ListSessionsOutput contains the result of the ListSessions operation.
type ListSessionsOutput struct {
	Items []StatusOutput `json:"items"`
}

// ListSessions returns an overview of every learn session, most recent first.
func (l *Learner) ListSessions(ctx context.Context) (*ListSessionsOutput, error) {
	sessions, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]StatusOutput, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, *status(s))
	}
	return &ListSessionsOutput{Items: items}, nil
}

func status(s *learn.Session) *StatusOutput {
	out := &StatusOutput{
		Session:   s.Name,
		Sort:      s.Sort.Label(),
		Started:   s.Started,
		Progress:  s.Progress,
		Percent:   s.Percent(),
		CardCount: s.CardCount(),
		Boxes:     make([]BoxStatus, 0, s.NumBoxes()),
		UpdatedAt: s.UpdatedAt,
	}
	for _, b := range s.Boxes {
		out.Boxes = append(out.Boxes, BoxStatus{Label: b.Label, Count: len(b.Cards), Cards: b.Cards})
	}
	return out
}

// load resolves ref and loads the session.
func (l *Learner) load(ctx context.Context, ref SessionRef) (*learn.Session, error) {
	name := strings.TrimSpace(ref.Session)
	if name == "" {
		if strings.TrimSpace(ref.Deck) == "" {
			return nil, errors.NewInvalidRequest("must specify either session or deck")
		}
		algo, err := ParseAlgorithm(ref.Algorithm)
		if err != nil {
			return nil, err
		}
		deck, err := GetDeck(ctx, l.db, ref.Deck)
		if err != nil {
			return nil, err
		}
		name = SessionName(deck.Name, algo)
	}

	s, found, err := l.store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFound("learn session", name)
	}
	return s, nil
}

// show builds the view of the current card.
func (l *Learner) show(ctx context.Context, s *learn.Session, includeAnswer bool) (*ShowOutput, error) {
	name, ok := s.Current()
	if !ok {
		return nil, errors.NewNotStarted(s.Name)
	}
	c, err := db.GetCardByName(ctx, l.db, card.Normalize(name))
	if err != nil {
		return nil, err
	}

	pass := s.Pass.Box
	if pass == "" {
		pass = "All boxes"
	}
	box := ""
	if idx, ok := s.BoxOf(name); ok {
		box = s.Boxes[idx].Label
	}

	view := &CardView{
		Name:     c.Name,
		Question: c.Question,
		Keywords: c.Keywords,
		Links:    c.Links,
	}
	if includeAnswer {
		view.Answer = c.Answer
	}

	return &ShowOutput{
		Session:  s.Name,
		Pass:     pass,
		Sort:     s.Pass.Sort.Label(),
		Box:      box,
		Position: s.Progress + 1,
		Total:    len(s.Pass.Cards),
		Percent:  s.Percent(),
		Card:     view,
	}, nil
}
