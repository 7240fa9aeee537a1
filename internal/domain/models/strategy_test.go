package models

import (
	"errors"
	"math"
	"testing"
)

func TestValidateReportsFirstBadPrice(t *testing.T) {
	p := StrategyProposal{
		Action: Buy, EntryPrice: math.NaN(), StopLoss: -1, TakeProfit: 0,
		PositionSizePct: 0.01, Confidence: 0.5,
	}
	for i := 0; i < 20; i++ {
		err := p.Validate(0.05)
		var pe *ProposalError
		if !errors.As(err, &pe) || !errors.Is(err, ErrProposalInvalid) {
			t.Fatalf("expected ProposalError, got %v", err)
		}
		if pe.Reason != "entry_price must be a positive finite price" {
			t.Fatalf("run %d: reason %q", i, pe.Reason)
		}
	}

	p.EntryPrice = 100
	var pe *ProposalError
	if err := p.Validate(0.05); !errors.As(err, &pe) || pe.Reason != "stop_loss must be a positive finite price" {
		t.Fatalf("got %v", err)
	}
}

func TestValidateAcceptsSell(t *testing.T) {
	p := StrategyProposal{
		Action: Sell, EntryPrice: 100, StopLoss: 105, TakeProfit: 90,
		PositionSizePct: 0.02, Confidence: 1,
	}
	if err := p.Validate(0.05); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p.PositionSizePct = 0.1
	if err := p.Validate(0.05); !errors.Is(err, ErrProposalInvalid) {
		t.Fatalf("oversized proposal accepted: %v", err)
	}
}
