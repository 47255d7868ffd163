// Package ledger is an in-process payment gateway that records every accepted
// instruction. It backs development deployments and tests.
package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"certreg/internal/payment/models"
	"certreg/pkg/domain"
	"certreg/pkg/requestcontext"
)

type Gateway struct {
	mu                   sync.Mutex
	instructions         []models.Instruction
	declineTransfers     bool
	declineConfirmations bool
	err                  error
}

func New() *Gateway {
	return &Gateway{}
}

// DeclineTransfers makes subsequent transfers return false.
func (g *Gateway) DeclineTransfers(decline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineTransfers = decline
}

// DeclineConfirmations makes subsequent fee confirmations return false.
func (g *Gateway) DeclineConfirmations(decline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declineConfirmations = decline
}

// FailWith makes every call return err until cleared with nil.
func (g *Gateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

func (g *Gateway) Transfer(ctx context.Context, amount uint64, from, to domain.Principal) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.declineTransfers {
		return false, nil
	}
	g.record(ctx, models.Instruction{Kind: models.KindTransfer, Amount: amount, From: from, To: to})
	return true, nil
}

func (g *Gateway) ConfirmFeePayment(ctx context.Context, amount uint64, payer domain.Principal) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.declineConfirmations {
		return false, nil
	}
	g.record(ctx, models.Instruction{Kind: models.KindFeeConfirmation, Amount: amount, From: payer})
	return true, nil
}

func (g *Gateway) record(ctx context.Context, in models.Instruction) {
	in.ID = uuid.NewString()
	in.RequestID = requestcontext.RequestID(ctx)
	in.CreatedAt = requestcontext.Now(ctx)
	g.instructions = append(g.instructions, in)
}

// Instructions returns a copy of the accepted instructions in order.
func (g *Gateway) Instructions() []models.Instruction {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Instruction, len(g.instructions))
	copy(out, g.instructions)
	return out
}

// Transfers returns the accepted transfers.
func (g *Gateway) Transfers() []models.Instruction {
	return g.byKind(models.KindTransfer)
}

// Confirmations returns the accepted fee confirmations.
func (g *Gateway) Confirmations() []models.Instruction {
	return g.byKind(models.KindFeeConfirmation)
}

func (g *Gateway) byKind(kind models.InstructionKind) []models.Instruction {
	var out []models.Instruction
	for _, in := range g.Instructions() {
		if in.Kind == kind {
			out = append(out, in)
		}
	}
	return out
}
