package models

import (
	"time"

	"certreg/pkg/domain"
)

type InstructionKind string

const (
	// KindTransfer moves the mint fee from the payer to the treasury.
	KindTransfer InstructionKind = "transfer"
	// KindFeeConfirmation confirms the payer settled the mint fee.
	KindFeeConfirmation InstructionKind = "fee_confirmation"
)

// Instruction is one fee movement request handed to the payment system.
type Instruction struct {
	ID        string           `json:"id"`
	Kind      InstructionKind  `json:"kind"`
	Amount    uint64           `json:"amount"`
	From      domain.Principal `json:"from"`
	To        domain.Principal `json:"to,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
