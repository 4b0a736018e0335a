package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation turns in PostgreSQL.
type PostgresStore struct {
	pool     *pgxpool.Pool
	maxTurns int
}

func NewPostgresStore(ctx context.Context, databaseURL string, maxTurns int) (*PostgresStore, error) {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, maxTurns: maxTurns}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation_turns (
			conversation_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			speaker TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (conversation_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_created ON conversation_turns (conversation_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, conversationID string, speaker Speaker, text string) (Turn, error) {
	turn := Turn{
		ConversationID: conversationID,
		Speaker:        speaker,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}

	// Seq assignment and insert happen in one statement so concurrent appends
	// for the same conversation cannot race past the primary key.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversation_turns (conversation_id, seq, speaker, content, created_at)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
		 FROM conversation_turns WHERE conversation_id = $1
		 RETURNING seq`,
		conversationID, string(speaker), text, turn.CreatedAt,
	).Scan(&turn.Seq)
	if err != nil {
		return Turn{}, fmt.Errorf("append turn: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM conversation_turns
		 WHERE conversation_id = $1 AND seq <= $2 - $3`,
		conversationID, turn.Seq, s.maxTurns,
	)
	if err != nil {
		return Turn{}, fmt.Errorf("evict old turns: %w", err)
	}

	return turn, nil
}

func (s *PostgresStore) RecentContext(ctx context.Context, conversationID string, maxTurns int) ([]Turn, error) {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	rows, err := s.pool.Query(ctx,
		`SELECT conversation_id, seq, speaker, content, created_at
		 FROM conversation_turns WHERE conversation_id = $1
		 ORDER BY seq DESC LIMIT $2`,
		conversationID, maxTurns,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent context: %w", err)
	}
	defer rows.Close()

	items := make([]Turn, 0, maxTurns)
	for rows.Next() {
		var t Turn
		var speaker string
		if err := rows.Scan(&t.ConversationID, &t.Seq, &speaker, &t.Text, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Speaker = Speaker(speaker)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (s *PostgresStore) Snapshot(ctx context.Context, conversationID string) (Snapshot, error) {
	turns, err := s.RecentContext(ctx, conversationID, s.maxTurns)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{NextSeq: 1, Turns: turns}
	if n := len(turns); n > 0 {
		snap.NextSeq = turns[n-1].Seq + 1
	}
	return snap, nil
}

func (s *PostgresStore) Restore(ctx context.Context, conversationID string, snap Snapshot) error {
	if err := s.Reset(ctx, conversationID); err != nil {
		return err
	}
	for _, t := range snap.Turns {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO conversation_turns (conversation_id, seq, speaker, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (conversation_id, seq) DO NOTHING`,
			conversationID, t.Seq, string(t.Speaker), t.Text, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("restore turn %d: %w", t.Seq, err)
		}
	}
	return nil
}

func (s *PostgresStore) Reset(ctx context.Context, conversationID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM conversation_turns WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
