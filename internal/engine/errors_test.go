package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/genlock/internal/ir"
)

func TestRejectionError_Error(t *testing.T) {
	err := reject(ir.OpUnlockGeneration, ErrInsufficientFunds)
	assert.Equal(t, "unlock_generation rejected: insufficient funds", err.Error())
	assert.Equal(t, CategoryEconomic, err.Category)
}

func TestRejectionError_WrappedHelpers(t *testing.T) {
	err := fmt.Errorf("cli: %w", reject(ir.OpActivateGeneration, ErrNotOwner))

	assert.True(t, IsRejection(err))
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.NotErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, CategoryAuthorization, CategoryOf(err))
	assert.Equal(t, "must be token owner", RejectionReason(err))
}

func TestRejectionHelpers_NonRejection(t *testing.T) {
	err := errors.New("disk full")

	assert.False(t, IsRejection(err))
	assert.Equal(t, Category(""), CategoryOf(err))
	assert.Empty(t, RejectionReason(err))
}

func TestReasons_Categories(t *testing.T) {
	tests := []struct {
		reason   *Reason
		category Category
	}{
		{ErrNotAdministrator, CategoryAuthorization},
		{ErrNotOwner, CategoryAuthorization},
		{ErrInvalidName, CategoryValidation},
		{ErrInvalidPrerequisite, CategoryValidation},
		{ErrMustBeDisabled, CategoryState},
		{ErrActivelyUsed, CategoryState},
		{ErrInsufficientFunds, CategoryEconomic},
		{ErrAlreadyUnlocked, CategorySequencing},
		{ErrMustUnlockFirst, CategorySequencing},
		{ErrPrerequisiteLocked, CategorySequencing},
	}
	for _, tt := range tests {
		t.Run(tt.reason.Error(), func(t *testing.T) {
			assert.Equal(t, tt.category, tt.reason.Category())
		})
	}
}
