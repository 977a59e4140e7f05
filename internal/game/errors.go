package game

import "errors"

// Request-local failures. Every one of these leaves the session exactly as
// it was before the call; preconditions are checked before any mutation.
var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrGameOver is returned when a gameplay operation is attempted
	// after the round limit was passed or the game was ended early.
	ErrGameOver = errors.New("game is over")

	// ErrGameNotOver guards the summary, which only exists for finished
	// games.
	ErrGameNotOver = errors.New("game is not over yet")

	// ErrNoActiveContract is returned when an order is placed with no
	// contract in force.
	ErrNoActiveContract = errors.New("no active contract; negotiate terms before ordering")

	// ErrContractAlreadyActive is returned when a new proposal arrives
	// while a contract still has remaining rounds.
	ErrContractAlreadyActive = errors.New("a contract is already active")

	// ErrNoDraftAvailable is returned when a draft acceptance arrives
	// with nothing on the table.
	ErrNoDraftAvailable = errors.New("no draft contract available to accept")

	// ErrInvalidArgument wraps malformed inputs: bad demand methods,
	// out-of-range contract terms, negative quantities.
	ErrInvalidArgument = errors.New("invalid argument")
)
