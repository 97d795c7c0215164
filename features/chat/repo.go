package chat

import (
	"context"
	"database/sql"
	"strconv"

	"dochat/internal/pipeline"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) CreateSession(ctx context.Context, ownerID, title string) (*Session, error) {
	s := &Session{OwnerID: ownerID, Title: title}
	query := `INSERT INTO sessions (owner_id, title) VALUES ($1, $2) RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, ownerID, title).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	s := &Session{}
	query := `SELECT id, owner_id, title, created_at FROM sessions WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) ListSessions(ctx context.Context, ownerID string) ([]Session, error) {
	query := `SELECT id, owner_id, title, created_at FROM sessions WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// History returns the most recent turns in chronological order; turns
// <= 0 returns everything. A turn is one human message plus one reply,
// so the row window is turns * 2.
func (r *PostgresRepo) History(ctx context.Context, sessionID string, turns int) ([]pipeline.Message, error) {
	query := `SELECT text, from_ai, created_at FROM messages WHERE session_id = $1 ORDER BY id ASC`
	args := []interface{}{sessionID}
	if turns > 0 {
		query = `SELECT text, from_ai, created_at FROM (
			SELECT id, text, from_ai, created_at FROM messages WHERE session_id = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`
		args = append(args, turns*2)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []pipeline.Message
	for rows.Next() {
		var m pipeline.Message
		if err := rows.Scan(&m.Text, &m.FromAI, &m.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

func (r *PostgresRepo) Append(ctx context.Context, sessionID, text string, fromAI bool) (string, error) {
	var id int64
	query := `INSERT INTO messages (session_id, text, from_ai) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, sessionID, text, fromAI).Scan(&id); err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *PostgresRepo) CountHumanMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE session_id = $1 AND from_ai = FALSE`
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count)
	return count, err
}

func (r *PostgresRepo) UpdateTitle(ctx context.Context, sessionID, title string) error {
	query := `UPDATE sessions SET title = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, title, sessionID)
	return err
}
