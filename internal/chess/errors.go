package chess

import "errors"

var (
	ErrInvalidSquare = errors.New("invalid square")
	ErrIllegalMove   = errors.New("illegal move")
	ErrEmptyHistory  = errors.New("nothing to undo")
	ErrTimeExpired   = errors.New("time expired")
	ErrNoLegalMoves  = errors.New("no legal moves")
	// ErrStaleGame is returned when a delayed computer move targets a game
	// that has since been reset or replaced by a load.
	ErrStaleGame = errors.New("game session changed")
)
