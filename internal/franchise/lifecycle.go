package franchise

import (
	"fmt"

	"sgcsc-backend/internal/apperrors"
	"sgcsc-backend/internal/models"
)

// Allowed status moves. Approve is the only way out of pending and nothing
// returns to it.
var transitions = map[models.FranchiseStatus][]models.FranchiseStatus{
	models.FranchisePending:   {models.FranchiseActive},
	models.FranchiseActive:    {models.FranchiseSuspended},
	models.FranchiseSuspended: {models.FranchiseActive},
}

// CheckTransition returns apperrors.ErrInvalidTransition for a move the
// lifecycle does not allow. Staying in the same state is always allowed.
func CheckTransition(from, to models.FranchiseStatus) error {
	if !to.Valid() {
		return apperrors.Invalid("unknown status %q", to)
	}
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%s -> %s: %w", from, to, apperrors.ErrInvalidTransition)
}

// Toggled is the target of the admin toggle action.
func Toggled(from models.FranchiseStatus) (models.FranchiseStatus, error) {
	switch from {
	case models.FranchiseActive:
		return models.FranchiseSuspended, nil
	case models.FranchiseSuspended:
		return models.FranchiseActive, nil
	}
	return from, fmt.Errorf("%s cannot be toggled: %w", from, apperrors.ErrInvalidTransition)
}

// InitialStatus validates the status an admin creates a franchise with.
// Empty means active.
func InitialStatus(requested models.FranchiseStatus) (models.FranchiseStatus, error) {
	switch requested {
	case "":
		return models.FranchiseActive, nil
	case models.FranchisePending, models.FranchiseActive:
		return requested, nil
	}
	return "", apperrors.Invalid("a franchise cannot be created %s", requested)
}
