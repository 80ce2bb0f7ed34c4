package services

import "errors"

// Cross-cutting errors shared between services and the HTTP error mapping.
// Window violations and conflicts are routine outcomes, not faults: handlers
// surface them to the caller and nothing logs them as errors.
var (
	// Generic not-found (per-entity variants below give more context).
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed          = errors.New("validation failed")
	ErrPasswordTooShort          = errors.New("password is too short")
	ErrCompetitionNameRequired   = errors.New("competition name is required")
	ErrCompetitionDatesRequired  = errors.New("competition start and end dates are required")
	ErrCompetitionInvalidDates   = errors.New("competition end date must be after start date")
	ErrRoundNameRequired         = errors.New("round name is required")
	ErrRoundInvalidDates         = errors.New("round end date must be after start date")
	ErrRoundOutsideCompetition   = errors.New("round window must lie within the competition window")
	ErrPrizeTitleRequired        = errors.New("prize title is required")
	ErrPrizeInvalidPosition      = errors.New("prize position must be positive")
	ErrSubmissionContentRequired = errors.New("submission content must not be empty")
	ErrLinksNotAllowed           = errors.New("this round does not accept external links")
	ErrFilesNotAllowed           = errors.New("this round does not accept file uploads")
	ErrInvalidReviewStatus       = errors.New("review status must be approved or rejected")

	// Window violations (time-based, may become valid later)
	ErrSubmissionWindowClosed = errors.New("the submission window for this round is closed")
	ErrRoundStillOpen         = errors.New("the round has not ended yet, reviewing is not allowed")
	ErrRegistrationClosed     = errors.New("competition registration is closed")

	// Conflicts
	ErrPrizeAlreadyAwarded  = errors.New("prize has already been awarded")
	ErrAlreadyRegistered    = errors.New("user is already registered for this competition")
	ErrCompetitionNameTaken = errors.New("competition name already exists for this organizer")
	ErrRoundPositionTaken   = errors.New("round position is already taken")
	ErrPrizePositionTaken   = errors.New("prize position is already taken")

	// Progression rules
	ErrNotRegistered           = errors.New("user is not registered for this competition")
	ErrSubmissionNotApproved   = errors.New("submission must be approved before it can advance")
	ErrFinalRound              = errors.New("submission is in the final round and cannot advance")
	ErrPrizeSubmissionMismatch = errors.New("submission does not belong to this competition")
	ErrCompetitionNotPublished = errors.New("competition is not published")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Entity-specific not-found
	ErrUserNotFound         = errors.New("user not found")
	ErrCompetitionNotFound  = errors.New("competition not found")
	ErrRoundNotFound        = errors.New("round not found")
	ErrSubmissionNotFound   = errors.New("submission not found")
	ErrPrizeNotFound        = errors.New("prize not found")
	ErrNotificationNotFound = errors.New("notification not found")
)
