package services

import "errors"

// Shared errors surfaced by the service layer and mapped to HTTP statuses in
// the handlers package.
var (
	ErrTournamentNotFound = errors.New("tournament not found")

	// Validation and business rules
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrDisciplineRequired         = errors.New("tournament discipline is required")
	ErrStartTimeNotFuture         = errors.New("tournament start time must be in the future")
	ErrInvalidCapacity            = errors.New("max participants must be at least 2 and not less than current participants")
	ErrLicenseNumberRequired      = errors.New("license number is required")
	ErrInvalidResult              = errors.New("result must be 0 (loss) or 1 (win)")
	ErrRegistrationClosed         = errors.New("tournament registration is closed")
	ErrTournamentFull             = errors.New("tournament registration is full")
	ErrBracketAlreadyGenerated    = errors.New("bracket has already been generated")
	ErrBracketNotGenerated        = errors.New("no bracket available")
	ErrParticipantNotFound        = errors.New("participant registration not found")
	ErrParticipantsLocked         = errors.New("participants cannot change once the bracket exists")
	ErrLogoStorageUnavailable     = errors.New("logo storage is not configured")
	ErrLogoContentTypeUnsupported = errors.New("unsupported logo content type")
	ErrLogoNotSet                 = errors.New("tournament has no logo")

	// Conflicts
	ErrAlreadyJoined          = errors.New("user is already registered for this tournament")
	ErrLicenseNumberTaken     = errors.New("license number is already registered for this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")

	// Authorization
	ErrForbiddenOperation = errors.New("operation not allowed for the current user")
)
