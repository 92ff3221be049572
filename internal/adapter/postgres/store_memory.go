package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/memory"
)

const memoryColumns = `id, session_id, user_id, memory_type, key, value, importance, access_count,
	coalesce(consolidated_into::text, ''), embedding, created_at, last_accessed_at, expires_at`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// CreateMemory inserts a memory record. A missing id is generated.
func (s *Store) CreateMemory(ctx context.Context, m *memory.Memory) error {
	return insertMemory(ctx, s.pool, m)
}

func insertMemory(ctx context.Context, db execer, m *memory.Memory) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var consolidated *string
	if m.ConsolidatedInto != "" {
		consolidated = &m.ConsolidatedInto
	}
	_, err := db.Exec(ctx,
		`INSERT INTO memories (id, session_id, user_id, memory_type, key, value, importance, access_count,
		 consolidated_into, embedding, created_at, last_accessed_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		m.ID, m.SessionID, m.UserID, string(m.Type), m.Key, m.Value, m.Importance, m.AccessCount,
		consolidated, m.Embedding, m.CreatedAt, nullTime(m.LastAccessedAt), nullTime(m.ExpiresAt))
	if err != nil {
		return lookupErr(err, "create memory", m.ID)
	}
	return nil
}

// ListMemories returns the unexpired memories of a session, oldest first.
func (s *Store) ListMemories(ctx context.Context, sessionID string, types ...memory.Type) ([]memory.Memory, error) {
	q := `SELECT ` + memoryColumns + ` FROM memories
		WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > now())`
	args := []any{sessionID}
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q += ` AND memory_type = ANY($2)`
		args = append(args, names)
	}
	q += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []memory.Memory
	for rows.Next() {
		var (
			m            memory.Memory
			lastAccessed *time.Time
			expires      *time.Time
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Type, &m.Key, &m.Value, &m.Importance,
			&m.AccessCount, &m.ConsolidatedInto, &m.Embedding, &m.CreatedAt, &lastAccessed, &expires); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if lastAccessed != nil {
			m.LastAccessedAt = *lastAccessed
		}
		if expires != nil {
			m.ExpiresAt = *expires
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ConsolidateMemories inserts the summary and archives ids in one transaction.
func (s *Store) ConsolidateMemories(ctx context.Context, summary *memory.Memory, ids []string, archivedUntil time.Time) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertMemory(ctx, tx, summary); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE memories SET memory_type = 'archived', consolidated_into = $2, expires_at = $3 WHERE id = ANY($1::uuid[])`,
			ids, summary.ID, archivedUntil)
		if err != nil {
			return fmt.Errorf("archive memories: %w", err)
		}
		if int(tag.RowsAffected()) != len(ids) {
			return fmt.Errorf("archive memories: %d of %d found: %w", tag.RowsAffected(), len(ids), domain.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) TouchMemories(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = $2 WHERE id = ANY($1::uuid[])`, ids, at)
	if err != nil {
		return fmt.Errorf("touch memories: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpiredMemories(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge memories: %w", err)
	}
	return tag.RowsAffected(), nil
}

// nullTime converts a zero time to nil for nullable DB columns.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
