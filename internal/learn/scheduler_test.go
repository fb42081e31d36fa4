package learn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

// memStore keeps sessions as JSON so every Load returns a fresh copy.
type memStore struct {
	rows    map[string][]byte
	saves   int
	saveErr error
	dropAll bool // accept saves but never keep them
}

func newMemStore() *memStore {
	return &memStore{rows: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, s *Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if m.dropAll {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.rows[s.Name] = data
	return nil
}

func (m *memStore) Load(_ context.Context, name string) (*Session, bool, error) {
	data, ok := m.rows[name]
	if !ok {
		return nil, false, nil
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, err
	}
	return &s, true, nil
}

// stored returns the last saved copy of a session.
func (m *memStore) stored(t *testing.T, name string) *Session {
	t.Helper()
	s, ok, err := m.Load(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

// memCards resolves every name except those listed in missing.
type memCards struct {
	missing map[string]bool
}

func (c memCards) Resolve(_ context.Context, names []string) ([]card.Card, error) {
	var out []card.Card
	for _, n := range names {
		if c.missing[n] {
			continue
		}
		out = append(out, card.Card{Name: n, Question: "Q " + n, Answer: "A " + n})
	}
	return out, nil
}

func newTestScheduler(store Store) *Scheduler {
	return NewScheduler(store, memCards{}, nil, WithRand(rand.New(rand.NewSource(1))))
}

func TestGetOrCreate_CreatesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "BioBox"+"Leitner", []string{"cell", "organism"}, 5, SortUnset)
	require.NoError(t, err)
	require.Equal(t, "BioBoxLeitner", s.Name)
	require.Equal(t, 5, s.NumBoxes())
	require.Equal(t, []string{"cell", "organism"}, s.Boxes[0].Cards)
	require.Equal(t, 1, store.saves)
}

func TestGetOrCreate_ReturnsExistingUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	first, err := sc.GetOrCreate(ctx, "BioBoxLeitner", []string{"cell", "organism"}, 5, SortAlphabetical)
	require.NoError(t, err)
	_, _, err = sc.Correct(ctx, first, "cell")
	require.NoError(t, err)

	again, err := sc.GetOrCreate(ctx, "BioBoxLeitner", []string{"virus"}, 2, SortRandom)
	require.NoError(t, err)
	require.Equal(t, 5, again.NumBoxes())
	require.Equal(t, SortAlphabetical, again.Sort)
	require.Equal(t, []string{"organism"}, again.Boxes[0].Cards)
	require.Equal(t, []string{"cell"}, again.Boxes[1].Cards)
	_, ok := again.BoxOf("virus")
	require.False(t, ok)
}

func TestGetOrCreate_IntegrityFault(t *testing.T) {
	ctx := context.Background()

	store := newMemStore()
	store.dropAll = true
	_, err := newTestScheduler(store).GetOrCreate(ctx, "x", []string{"a"}, 5, SortRandom)
	require.True(t, errors.Is(err, errors.ErrIntegrity), "got %v", err)

	store = newMemStore()
	store.saveErr = fmt.Errorf("disk I/O error")
	_, err = newTestScheduler(store).GetOrCreate(ctx, "x", []string{"a"}, 5, SortRandom)
	require.True(t, errors.Is(err, errors.ErrIntegrity), "got %v", err)
}

func TestGetOrCreate_InvalidBoxes(t *testing.T) {
	_, err := newTestScheduler(newMemStore()).GetOrCreate(context.Background(), "x", nil, 0, SortRandom)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestScenario_FullPass(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "BioBoxLeitner", []string{"cell", "organism"}, 5, SortUnset)
	require.NoError(t, err)

	_, moved, err := sc.Correct(ctx, s, "cell")
	require.NoError(t, err)
	require.True(t, moved)
	_, _, err = sc.Wrong(ctx, s, "organism")
	require.NoError(t, err)

	saved := store.stored(t, s.Name)
	require.Equal(t, []string{"organism"}, saved.Boxes[0].Cards)
	require.Equal(t, []string{"cell"}, saved.Boxes[1].Cards)

	require.NoError(t, sc.Open(ctx, s, "", SortUnset))
	require.Equal(t, []string{"organism", "cell"}, s.Pass.Cards)
	require.True(t, s.Started)
	require.Equal(t, 0, s.Progress)

	completed, err := sc.Next(ctx, s)
	require.NoError(t, err)
	require.False(t, completed)
	require.Equal(t, 1, store.stored(t, s.Name).Progress)

	completed, err = sc.Next(ctx, s)
	require.NoError(t, err)
	require.True(t, completed)

	saved = store.stored(t, s.Name)
	require.Equal(t, 0, saved.Progress)
	require.False(t, saved.Started)
}

func TestOpen_FullPassIgnoresSort(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	names := strings.Split("a b c d e f g h i j k l", " ")
	s, err := sc.GetOrCreate(ctx, "x", names, 5, SortRandom)
	require.NoError(t, err)
	for _, n := range []string{"b", "e", "e"} {
		_, _, err = sc.Correct(ctx, s, n)
		require.NoError(t, err)
	}

	for _, st := range []SortType{SortRandom, SortAlphabetical} {
		require.NoError(t, sc.Open(ctx, s, "", st))
		require.Equal(t, s.FullPass(), s.Pass.Cards)
		require.Equal(t, []string{"a", "c", "d", "f", "g", "h", "i", "j", "k", "l", "b", "e"}, s.Pass.Cards)
		require.Equal(t, SortUnset, s.Pass.Sort)
		require.Equal(t, SortRandom, s.Sort, "session keeps its last chosen sort")
		s.finish()
	}
}

func TestOpen_SingleBoxAlphabetical(t *testing.T) {
	ctx := context.Background()
	sc := newTestScheduler(newMemStore())

	s, err := sc.GetOrCreate(ctx, "Fruit", []string{"Zebra", "Apple", "Mango"}, 5, SortUnset)
	require.NoError(t, err)

	require.NoError(t, sc.Open(ctx, s, "Box 1", SortAlphabetical))
	require.Equal(t, []string{"Apple", "Mango", "Zebra"}, s.Pass.Cards)
	require.Equal(t, "Box 1", s.Pass.Box)
	require.Equal(t, SortAlphabetical, s.Sort)
}

func TestOpen_EmptyBox(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "BioBoxLeitner", []string{"cell"}, 5, SortUnset)
	require.NoError(t, err)
	saves := store.saves

	err = sc.Open(ctx, s, "Box 3", SortAlphabetical)
	require.True(t, errors.Is(err, errors.ErrEmptyBox), "got %v", err)
	require.False(t, s.Started)
	require.Equal(t, 0, s.Progress)
	require.Empty(t, s.Pass.Cards)
	require.Equal(t, saves, store.saves, "no state is saved for an empty box")
}

func TestOpen_UnresolvableCardsCountAsEmpty(t *testing.T) {
	ctx := context.Background()
	sc := NewScheduler(newMemStore(), memCards{missing: map[string]bool{"gone": true}}, nil)

	s, err := sc.GetOrCreate(ctx, "x", []string{"gone"}, 5, SortUnset)
	require.NoError(t, err)

	err = sc.Open(ctx, s, "Box 1", SortUnset)
	require.True(t, errors.Is(err, errors.ErrEmptyBox))
	require.False(t, s.Started)
}

func TestOpen_UnknownBox(t *testing.T) {
	ctx := context.Background()
	sc := newTestScheduler(newMemStore())

	s, err := sc.GetOrCreate(ctx, "x", []string{"a"}, 3, SortUnset)
	require.NoError(t, err)

	err = sc.Open(ctx, s, "Box 4", SortUnset)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestOpen_ResumeIgnoresNewConfiguration(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"c", "a", "b"}, 5, SortUnset)
	require.NoError(t, err)
	require.NoError(t, sc.Open(ctx, s, "Box 1", SortAlphabetical))
	_, err = sc.Next(ctx, s)
	require.NoError(t, err)
	require.NoError(t, sc.Suspend(ctx, s))

	resumed := store.stored(t, "x")
	require.True(t, resumed.Started)
	require.NoError(t, sc.Open(ctx, resumed, "Box 2", SortRandom))
	require.Equal(t, "Box 1", resumed.Pass.Box)
	require.Equal(t, []string{"a", "b", "c"}, resumed.Pass.Cards)
	require.Equal(t, 1, resumed.Progress)
	cur, ok := resumed.Current()
	require.True(t, ok)
	require.Equal(t, "b", cur)
}

func TestOpen_ResumeReshufflesRandomPass(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	names := strings.Split("a b c d e f g h i j k l", " ")
	s, err := sc.GetOrCreate(ctx, "x", names, 5, SortRandom)
	require.NoError(t, err)
	require.NoError(t, sc.Open(ctx, s, "Box 1", SortRandom))
	first := slices.Clone(s.Pass.Cards)

	changed := false
	for range 10 {
		require.NoError(t, sc.Open(ctx, s, "Box 1", SortRandom))
		sorted := slices.Clone(s.Pass.Cards)
		slices.Sort(sorted)
		require.Equal(t, names, sorted, "resumed pass holds the same cards")
		if !slices.Equal(first, s.Pass.Cards) {
			changed = true
		}
	}
	require.True(t, changed, "resuming a random pass shuffles again")
}

func TestOpen_ResumeClampsProgress(t *testing.T) {
	ctx := context.Background()
	sc := NewScheduler(newMemStore(), memCards{missing: map[string]bool{"c": true}}, nil)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a", "b", "c"}, 5, SortUnset)
	require.NoError(t, err)
	s.begin(Pass{Cards: []string{"a", "b", "c"}})
	s.Progress = 2

	require.NoError(t, sc.Open(ctx, s, "", SortUnset))
	require.Equal(t, []string{"a", "b"}, s.Pass.Cards)
	require.Equal(t, 1, s.Progress)
}

func TestAnswers_MoveCardsDuringPass(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a", "b"}, 5, SortUnset)
	require.NoError(t, err)
	require.NoError(t, sc.Open(ctx, s, "Box 1", SortUnset))

	cur, _ := s.Current()
	tr, moved, err := sc.Correct(ctx, s, cur)
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, Transition{Card: "a", From: 1, To: 2}, tr)

	// The pass snapshot does not change when cards move between boxes.
	require.Equal(t, []string{"a", "b"}, s.Pass.Cards)
	saved := store.stored(t, "x")
	require.Equal(t, []string{"b"}, saved.Boxes[0].Cards)
	require.Equal(t, []string{"a"}, saved.Boxes[1].Cards)
}

func TestAnswer_UnknownCardIsIgnored(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a"}, 5, SortUnset)
	require.NoError(t, err)
	saves := store.saves

	_, moved, err := sc.Correct(ctx, s, "ghost")
	require.NoError(t, err)
	require.False(t, moved)
	_, moved, err = sc.Wrong(ctx, s, "ghost")
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, saves, store.saves)
}

func TestNextAndBack_RequireActivePass(t *testing.T) {
	ctx := context.Background()
	sc := newTestScheduler(newMemStore())

	s, err := sc.GetOrCreate(ctx, "x", []string{"a"}, 5, SortUnset)
	require.NoError(t, err)

	_, err = sc.Next(ctx, s)
	require.True(t, errors.Is(err, errors.ErrNotStarted))
	require.True(t, errors.Is(sc.Back(ctx, s), errors.ErrNotStarted))
}

func TestBack(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a", "b", "c"}, 5, SortUnset)
	require.NoError(t, err)
	require.NoError(t, sc.Open(ctx, s, "", SortUnset))

	require.NoError(t, sc.Back(ctx, s))
	require.Equal(t, 0, s.Progress)

	_, err = sc.Next(ctx, s)
	require.NoError(t, err)
	_, err = sc.Next(ctx, s)
	require.NoError(t, err)
	require.NoError(t, sc.Back(ctx, s))
	require.Equal(t, 1, store.stored(t, "x").Progress)
}

func TestSuspend_KeepsPassInProgress(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a", "b"}, 5, SortUnset)
	require.NoError(t, err)
	require.NoError(t, sc.Open(ctx, s, "", SortUnset))
	_, err = sc.Next(ctx, s)
	require.NoError(t, err)
	require.NoError(t, sc.Suspend(ctx, s))

	saved := store.stored(t, "x")
	require.True(t, saved.Started)
	require.Equal(t, 1, saved.Progress)
	require.Equal(t, []string{"a", "b"}, saved.Pass.Cards)
}

func TestSuspend_WithoutPass(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sc := newTestScheduler(store)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a"}, 5, SortUnset)
	require.NoError(t, err)
	require.NoError(t, sc.Suspend(ctx, s))
	require.False(t, store.stored(t, "x").Started)
}

func TestScheduler_LogsTransitions(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sc := NewScheduler(newMemStore(), memCards{}, logger)

	s, err := sc.GetOrCreate(ctx, "x", []string{"a"}, 5, SortUnset)
	require.NoError(t, err)
	_, _, err = sc.Correct(ctx, s, "a")
	require.NoError(t, err)
	_, _, err = sc.Correct(ctx, s, "ghost")
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "session created")
	require.Contains(t, out, "card moved")
	require.Contains(t, out, "answer for unknown card ignored")
	require.Contains(t, out, "component=learn")
}
