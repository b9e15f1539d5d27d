package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// Category classifies why an operation was rejected.
type Category string

const (
	// CategoryAuthorization means the caller lacks administrator rights or
	// asset ownership.
	CategoryAuthorization Category = "authorization"

	// CategoryValidation means an argument is malformed or names something
	// that does not exist.
	CategoryValidation Category = "validation"

	// CategoryState means the catalog or asset is not in the state the
	// operation requires.
	CategoryState Category = "state"

	// CategoryEconomic means the payment does not cover the price.
	CategoryEconomic Category = "economic"

	// CategorySequencing means a tier was unlocked out of order or twice.
	CategorySequencing Category = "sequencing"
)

// Reason is a fixed rejection message. Reasons are comparable sentinels:
// errors.Is(err, ErrAlreadyUnlocked) reports whether err was rejected for
// that reason.
type Reason struct {
	category Category
	message  string
}

func newReason(c Category, msg string) *Reason {
	return &Reason{category: c, message: msg}
}

// Error implements the error interface.
func (r *Reason) Error() string { return r.message }

// Category returns the reason's category.
func (r *Reason) Category() Category { return r.category }

// Authorization.
var (
	ErrNotAdministrator = newReason(CategoryAuthorization, "caller is not an administrator")
	ErrNotOwner         = newReason(CategoryAuthorization, "must be token owner")
)

// Validation.
var (
	ErrInvalidName          = newReason(CategoryValidation, "invalid generation name")
	ErrAutoUnlockPriced     = newReason(CategoryValidation, "auto-unlock generation must have no associated price")
	ErrAutoUnlockMustBeFree = newReason(CategoryValidation, "auto-unlock must be free")
	ErrInvalidPrerequisite  = newReason(CategoryValidation, "invalid prerequisite generation")
	ErrInvalidGeneration    = newReason(CategoryValidation, "invalid generation")
	ErrInvalidToken         = newReason(CategoryValidation, "invalid token")
)

// State preconditions.
var (
	ErrMustBeDisabled         = newReason(CategoryState, "generation must be disabled")
	ErrMustBeEnabled          = newReason(CategoryState, "generation must be enabled")
	ErrPrerequisiteDisabled   = newReason(CategoryState, "prerequisite must be enabled")
	ErrNotTail                = newReason(CategoryState, "only the most recently added generation may be removed")
	ErrGenesisRemoval         = newReason(CategoryState, "genesis generation cannot be removed")
	ErrActivelyUsed           = newReason(CategoryState, "generation is actively used")
	ErrHasUnlocks             = newReason(CategoryState, "generation already has unlocks")
	ErrUnavailable            = newReason(CategoryState, "generation unavailable")
	ErrAlreadyMinted          = newReason(CategoryState, "token already minted")
	ErrGenerationLimitReached = newReason(CategoryState, "generation limit reached")
)

// Economic.
var (
	ErrInsufficientFunds = newReason(CategoryEconomic, "insufficient funds")
	ErrPaymentNotExact   = newReason(CategoryEconomic, "payment must equal price")
)

// Sequencing.
var (
	ErrAlreadyUnlocked    = newReason(CategorySequencing, "generation already unlocked")
	ErrPrerequisiteLocked = newReason(CategorySequencing, "must unlock prerequisite generation first")
	ErrMustUnlockFirst    = newReason(CategorySequencing, "must unlock first")
)

// RejectionError is returned when an operation fails a precondition. The
// engine state is unchanged whenever a RejectionError is returned.
type RejectionError struct {
	// Op is the rejected operation.
	Op ir.Op

	// Category classifies the failure.
	Category Category

	// Reason is the fixed sentinel explaining the failure.
	Reason *Reason
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason.message)
}

// Unwrap exposes the sentinel reason to errors.Is.
func (e *RejectionError) Unwrap() error {
	return e.Reason
}

func reject(op ir.Op, r *Reason) *RejectionError {
	return &RejectionError{Op: op, Category: r.category, Reason: r}
}

// IsRejection reports whether err is a precondition failure rather than an
// infrastructure error. Uses errors.As to handle wrapped errors.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// CategoryOf returns the rejection category of err, or "" if err is not a
// rejection.
func CategoryOf(err error) Category {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

// RejectionReason returns the fixed reason message of err, or "" if err is
// not a rejection.
func RejectionReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason.message
	}
	return ""
}
