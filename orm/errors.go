package orm

import "errors"

var (
	// ErrNotFound indicates that no record matched the query.
	// Returned by Take, First and FindOne.
	//
	//	user, err := repo.FindOne(ctx, 123)
	//	if errors.Is(err, orm.ErrNotFound) {
	//	    // User not found
	//	}
	ErrNotFound = errors.New("orm: record not found")

	// ErrDuplicate indicates that a write was rejected by a unique constraint.
	// The driver error stays in the chain, so errors.As still reaches it.
	ErrDuplicate = errors.New("orm: duplicate key")

	// ErrSessionClosed is returned when a closed session is used.
	ErrSessionClosed = errors.New("orm: session closed")
)
