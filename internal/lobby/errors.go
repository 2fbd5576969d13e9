// internal/lobby/errors.go
package lobby

import "errors"

// Error kinds. Every rejection surfaced to a client unwraps to exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExternal          = errors.New("external failure")
	ErrCapacity          = errors.New("capacity error")
	ErrAuth              = errors.New("authentication failure")
)

// Error is a user-facing rejection. Error() is the text sent in error_msg.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

var (
	ErrInvalidBet         = newError(ErrValidation, "Bet must be a positive whole number")
	ErrInvalidLobbyName   = newError(ErrValidation, "Lobby name must be between 1 and 32 characters")
	ErrInvalidLobbyID     = newError(ErrValidation, "Invalid lobby id")
	ErrMissingCredentials = newError(ErrValidation, "Missing credentials")
	ErrUnknownAction      = newError(ErrValidation, "Unknown action")
	ErrMessageTooLong     = newError(ErrValidation, "Message is too long")

	ErrLobbyNotFound = newError(ErrNotFound, "Lobby not found")

	ErrNotAuthenticated     = newError(ErrConflict, "Not authenticated")
	ErrAlreadyAuthenticated = newError(ErrConflict, "Already authenticated")
	ErrAuthInProgress       = newError(ErrConflict, "Authentication already in progress")
	ErrNotInLobby           = newError(ErrConflict, "You are not in a lobby")
	ErrSeatedCannotLeave    = newError(ErrConflict, "Leave the table before leaving the lobby")
	ErrTableOccupied        = newError(ErrConflict, "Another player is hosting the table")
	ErrGameInProgress       = newError(ErrConflict, "A round is already in progress")
	ErrNoOpenTable          = newError(ErrConflict, "There is no table taking bets")
	ErrNotTableHost         = newError(ErrConflict, "Only the table host can do that")
	ErrNotSeated            = newError(ErrConflict, "You are not seated at the table")

	ErrNotEnoughPlayers = newError(ErrCapacity, "At least two seated players are needed to start")

	ErrBalanceTooLow = newError(ErrInsufficientFunds, "Insufficient balance for this bet")

	ErrDebitFailed  = newError(ErrExternal, "Your stake could not be collected")
	ErrTableChanged = newError(ErrExternal, "The table changed before your stake was collected, it has been refunded")
	ErrPayoutFailed = newError(ErrExternal, "Your winnings could not be paid out yet, the payout has been recorded")
)

// authError wraps a gateway rejection reason.
func authError(reason string) *Error {
	return newError(ErrAuth, "Authentication failed: "+reason)
}
