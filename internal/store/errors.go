package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLastPhase    = errors.New("a board must keep at least one phase")
	ErrLastColumn   = errors.New("a phase must keep at least one column")
	ErrLastOwner    = errors.New("a project must keep at least one owner")
	ErrInvalidOrder = errors.New("order must list every phase of the board exactly once")
	ErrDuplicateTag = errors.New("a tag with this name already exists on the board")
	ErrDuplicate    = errors.New("already exists")
	ErrCrossBoard   = errors.New("target belongs to another board")
	ErrMoveConflict = errors.New("the item kept moving concurrently, try again")
)

// errStaleMove means the row left its container between the unlocked read
// and the container lock.
var errStaleMove = errors.New("stale move")

// moveAttempts bounds how often a move re-reads a row that changed container.
const moveAttempts = 3

// retryMove runs move until it completes without a stale read.
func retryMove[T any](move func() (T, error)) (T, error) {
	for attempt := 0; attempt < moveAttempts; attempt++ {
		result, err := move()
		if !errors.Is(err, errStaleMove) {
			return result, err
		}
	}
	var zero T
	return zero, ErrMoveConflict
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
