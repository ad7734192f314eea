package services

import "errors"

// Error kinds shared across services and the HTTP mapping. Every expected
// failure wraps one of these sentinels; callers classify with errors.Is.
var (
	// Bad input, rejected before anything is persisted.
	ErrValidation = errors.New("validation failed")

	// A precondition on current state does not hold; nothing was mutated.
	ErrStateConflict = errors.New("operation conflicts with current state")

	// Missing bracket or match.
	ErrNotFound = errors.New("requested resource not found")

	// Optimistic version mismatch; the caller should retry with fresh state.
	ErrVersionConflict = errors.New("concurrent modification detected")

	// The backing store failed mid-operation; compensation was applied.
	ErrPersistence = errors.New("persistence failure")

	// Authorization failures on the player submission path.
	ErrForbidden = errors.New("operation not allowed for the current actor")
)

// Specific validation and state errors, all tagged with their kind.
var (
	ErrTeamCountInvalid       = wrap(ErrValidation, "team count must be between 2 and 128")
	ErrGroupCountInvalid      = wrap(ErrValidation, "group count must be between 1 and 16")
	ErrGroupTooSmall          = wrap(ErrValidation, "every group needs at least 2 teams")
	ErrTooFewTeamsForGroups   = wrap(ErrValidation, "at least 4 teams are required for a group stage")
	ErrMatchFormatInvalid     = wrap(ErrValidation, "match format out of bounds")
	ErrScoreInvalid           = wrap(ErrValidation, "score is not valid for the match format")
	ErrBracketNotFound        = wrap(ErrNotFound, "bracket not found")
	ErrMatchNotFound          = wrap(ErrNotFound, "match not found")
	ErrKnockoutAlreadyExists  = wrap(ErrStateConflict, "knockout phase already generated")
	ErrGroupsNotFinished      = wrap(ErrStateConflict, "all group matches must be completed first")
	ErrKnockoutStarted        = wrap(ErrStateConflict, "knockout phase has matches in progress or completed")
	ErrMatchAlreadyStarted    = wrap(ErrStateConflict, "match already started")
	ErrMatchNotDecided        = wrap(ErrStateConflict, "match has no winner to advance")
	ErrDownstreamPlayed       = wrap(ErrStateConflict, "next match already has a result")
	ErrMatchTeamsIncomplete   = wrap(ErrStateConflict, "both teams must be assigned before scoring")
	ErrPlayerScoresDisabled   = wrap(ErrForbidden, "tournament does not allow player score submission")
	ErrSubmitterNotOnRoster   = wrap(ErrForbidden, "submitter is not on either roster")
)

type kindError struct {
	kind error
	msg  string
}

func wrap(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }
