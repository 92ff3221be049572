package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain"
)

// Postgres error codes the store maps onto domain errors.
const (
	codeInvalidText = "22P02" // malformed uuid literal
	codeUniqueKey   = "23505"
)

type scannable interface {
	Scan(dest ...any) error
}

// lookupErr maps a single-row lookup failure onto the domain. No row and an
// id that is not a uuid both mean the record does not exist.
func lookupErr(err error, what, key string) error {
	if errors.Is(err, pgx.ErrNoRows) || hasCode(err, codeInvalidText) {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrNotFound)
	}
	if hasCode(err, codeUniqueKey) {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrConflict)
	}
	return fmt.Errorf("%s %s: %w", what, key, err)
}

// oneRow turns an Exec result into ErrNotFound when nothing matched.
func oneRow(tag pgconn.CommandTag, err error, what, key string) error {
	if err != nil {
		return lookupErr(err, what, key)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", what, key, domain.ErrNotFound)
	}
	return nil
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// textArray keeps NOT NULL text[] columns non-null.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
