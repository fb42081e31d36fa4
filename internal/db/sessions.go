package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
	"github.com/hpungsan/leitner/internal/learn"
)

// Compile-time interface checks.
var (
	_ learn.Store      = (*SessionStore)(nil)
	_ learn.CardSource = (*CardResolver)(nil)
)

const sessionColumns = `name, boxes_json, sort, progress, started, pass_json, created_at, updated_at`

// SessionStore persists learn sessions, one row per session.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore returns a SessionStore backed by db.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save writes the whole session with a single UPSERT, so a save is atomic.
// CreatedAt is kept from the first save; UpdatedAt is set to now.
func (st *SessionStore) Save(ctx context.Context, s *learn.Session) error {
	boxesJSON, err := json.Marshal(s.Boxes)
	if err != nil {
		return errors.NewInternal(err)
	}
	passJSON, err := json.Marshal(s.Pass)
	if err != nil {
		return errors.NewInternal(err)
	}
	sortText, err := s.Sort.MarshalText()
	if err != nil {
		return errors.NewInvalidRequest(err.Error())
	}

	now := time.Now().Unix()
	if s.CreatedAt == 0 {
		s.CreatedAt = now
	}

	query := `
		INSERT INTO learn_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			boxes_json = excluded.boxes_json,
			sort       = excluded.sort,
			progress   = excluded.progress,
			started    = excluded.started,
			pass_json  = excluded.pass_json,
			updated_at = excluded.updated_at
	`
	_, err = st.db.ExecContext(ctx, query,
		s.Name, string(boxesJSON), string(sortText), s.Progress, s.Started,
		string(passJSON), s.CreatedAt, now,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	s.UpdatedAt = now
	return nil
}

// Load reads the session called name. found is false when there is none.
func (st *SessionStore) Load(ctx context.Context, name string) (*learn.Session, bool, error) {
	row := st.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM learn_sessions WHERE name = ?`, name)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return s, true, nil
}

// List returns all sessions, most recently used first.
func (st *SessionStore) List(ctx context.Context) ([]*learn.Session, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM learn_sessions ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var sessions []*learn.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return sessions, nil
}

func scanSession(row scanner) (*learn.Session, error) {
	var (
		s         learn.Session
		boxesJSON string
		sortText  string
		passJSON  string
	)
	err := row.Scan(&s.Name, &boxesJSON, &sortText, &s.Progress, &s.Started,
		&passJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(boxesJSON), &s.Boxes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(passJSON), &s.Pass); err != nil {
		return nil, err
	}
	if err := s.Sort.UnmarshalText([]byte(sortText)); err != nil {
		return nil, err
	}
	for i := range s.Boxes {
		if s.Boxes[i].Cards == nil {
			s.Boxes[i].Cards = []string{}
		}
	}
	return &s, nil
}

// CardResolver resolves card names against the cards table.
type CardResolver struct {
	db *sql.DB
}

// NewCardResolver returns a CardResolver backed by db.
func NewCardResolver(db *sql.DB) *CardResolver {
	return &CardResolver{db: db}
}

// Resolve implements learn.CardSource.
func (r *CardResolver) Resolve(ctx context.Context, names []string) ([]card.Card, error) {
	return ResolveCards(ctx, r.db, names)
}
