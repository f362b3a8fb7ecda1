package models

import (
	"fmt"

	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
)

// FullOwnership is the total every partition sums to.
const FullOwnership = 100

// Stake is one owner's percentage of an asset.
type Stake struct {
	Owner id.OwnerID `json:"owner"`
	Share int        `json:"share"`
}

// Partition is the ordered list of stakes in an asset. Owners appear in the
// order they most recently became distinct entries.
type Partition []Stake

// IndexOf returns the position of owner, or -1.
func (p Partition) IndexOf(owner id.OwnerID) int {
	for i, s := range p {
		if s.Owner == owner {
			return i
		}
	}
	return -1
}

// Total sums all shares.
func (p Partition) Total() int {
	total := 0
	for _, s := range p {
		total += s.Share
	}
	return total
}

func (p Partition) Clone() Partition {
	if p == nil {
		return nil
	}
	out := make(Partition, len(p))
	copy(out, p)
	return out
}

// Validate checks the partition invariants: shares in (0, 100], unique owners,
// total of exactly FullOwnership.
func (p Partition) Validate() error {
	if len(p) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "partition has no stakeholders")
	}
	seen := make(map[id.OwnerID]struct{}, len(p))
	for _, s := range p {
		if s.Owner.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "partition entry has empty owner")
		}
		if s.Share <= 0 || s.Share > FullOwnership {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("share %d for %s out of range", s.Share, s.Owner))
		}
		if _, dup := seen[s.Owner]; dup {
			return dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("owner %s appears more than once", s.Owner))
		}
		seen[s.Owner] = struct{}{}
	}
	if total := p.Total(); total != FullOwnership {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("shares sum to %d, want %d", total, FullOwnership))
	}
	return nil
}
