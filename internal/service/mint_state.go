package service

import (
	"fmt"

	"github.com/contribmint/contribmint-api/internal/models"
	appErrors "github.com/contribmint/contribmint-api/pkg/errors"
)

// ConsensusRule decides when peer votes make a contribution mintable.
type ConsensusRule struct {
	MinVotes int
	MinMean  float64
}

// DefaultConsensusRule requires two votes averaging at least three.
var DefaultConsensusRule = ConsensusRule{MinVotes: 2, MinMean: 3.0}

// Eligible compares the unrounded mean against the threshold without dividing.
func (r ConsensusRule) Eligible(tally models.VoteTally) bool {
	if tally.Count < r.MinVotes || tally.Count == 0 {
		return false
	}
	return float64(tally.Sum) >= r.MinMean*float64(tally.Count)
}

// Trigger is an input to the mint status machine.
type Trigger interface {
	trigger()
}

// VoteTallied fires after a vote was recorded and the event re-tallied.
type VoteTallied struct {
	Tally models.VoteTally
}

// RedemptionConfirmed fires once the chain confirms a redemption of the event.
type RedemptionConfirmed struct{}

func (VoteTallied) trigger()         {}
func (RedemptionConfirmed) trigger() {}

// Transition is the only place a contribution's mint status is decided.
// Votes promote AWAITING_VOTES to MINT_ELIGIBLE and never demote.
// A confirmed redemption moves MINT_ELIGIBLE to the terminal MINTED state.
func (r ConsensusRule) Transition(current models.MintStatus, t Trigger) (models.MintStatus, error) {
	if !current.Valid() {
		return current, appErrors.Wrap(fmt.Errorf("status %q", current), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unknown mint status")
	}

	switch trig := t.(type) {
	case VoteTallied:
		if current == models.MintStatusAwaitingVotes && r.Eligible(trig.Tally) {
			return models.MintStatusMintEligible, nil
		}
		return current, nil
	case RedemptionConfirmed:
		switch current {
		case models.MintStatusMintEligible:
			return models.MintStatusMinted, nil
		case models.MintStatusMinted:
			return current, nil
		default:
			return current, appErrors.Clone(appErrors.ErrNotEligible, "contribution is not eligible for minting")
		}
	default:
		return current, appErrors.Clone(appErrors.ErrInternal, "unsupported mint trigger")
	}
}
