package engine

import (
	"context"
	"fmt"

	"github.com/roach88/genlock/internal/ir"
)

// ExcessPolicy decides what happens to a payment above the tier price.
// The engine never holds funds; the policy only shapes the receipt.
type ExcessPolicy string

const (
	// ExcessRetain accepts overpayment and reports no refund.
	ExcessRetain ExcessPolicy = "retain"

	// ExcessRefund accepts overpayment and reports the excess as a refund
	// owed by the custody layer.
	ExcessRefund ExcessPolicy = "refund"

	// ExcessReject requires the payment to equal the price exactly.
	ExcessReject ExcessPolicy = "reject"
)

// ParseExcessPolicy parses a policy name.
func ParseExcessPolicy(s string) (ExcessPolicy, error) {
	switch p := ExcessPolicy(s); p {
	case ExcessRetain, ExcessRefund, ExcessReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown excess policy %q (expected retain, refund or reject)", s)
	}
}

// UnlockReceipt describes a successful unlock.
type UnlockReceipt struct {
	Asset      ir.AssetID      `json:"asset"`
	Generation ir.GenerationID `json:"generation"`
	Price      ir.Amount       `json:"price"`
	Paid       ir.Amount       `json:"paid"`
	Refund     ir.Amount       `json:"refund"`
}

// UnlockGeneration sets the asset's bit for a paid tier. Any caller may pay
// for any asset; ownership is only checked on activation.
func (e *Engine) UnlockGeneration(ctx context.Context, caller ir.Identity, asset ir.AssetID, id ir.GenerationID, payment ir.Amount) (UnlockReceipt, error) {
	const op = ir.OpUnlockGeneration
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.generation(id)
	if !ok || !g.Enabled {
		return UnlockReceipt{}, e.reject(op, caller, ErrMustBeEnabled)
	}
	a, ok := e.assets[asset]
	if !ok {
		return UnlockReceipt{}, e.reject(op, caller, ErrInvalidToken)
	}
	if isUnlocked(a, g) {
		return UnlockReceipt{}, e.reject(op, caller, ErrAlreadyUnlocked)
	}
	if !g.Available {
		return UnlockReceipt{}, e.reject(op, caller, ErrUnavailable)
	}
	switch cmp := payment.Cmp(g.Price); {
	case cmp < 0:
		return UnlockReceipt{}, e.reject(op, caller, ErrInsufficientFunds)
	case cmp > 0 && e.excess == ExcessReject:
		return UnlockReceipt{}, e.reject(op, caller, ErrPaymentNotExact)
	}
	if g.HasPrerequisite() && !isUnlocked(a, e.generations[g.Prerequisite]) {
		return UnlockReceipt{}, e.reject(op, caller, ErrPrerequisiteLocked)
	}

	a = a.Clone()
	a.Unlocked.Set(uint(id))
	g.Unlocks++

	args := map[string]string{
		ir.ArgAsset:      asset.String(),
		ir.ArgGeneration: id.String(),
		ir.ArgPayment:    payment.String(),
	}
	m := &ir.Mutation{Generations: []ir.Generation{g}, Assets: []ir.Asset{a}}
	if err := e.commit(ctx, op, caller, args, m); err != nil {
		return UnlockReceipt{}, err
	}

	receipt := UnlockReceipt{Asset: asset, Generation: id, Price: g.Price, Paid: payment}
	if e.excess == ExcessRefund {
		receipt.Refund = payment.Sub(g.Price)
	}
	return receipt, nil
}
