package models

import (
	"fmt"
	"time"

	id "mediashare/pkg/domain"
	dErrors "mediashare/pkg/domain-errors"
)

// Transfer describes moving Percentage points of ownership from From to To.
// From must already be authenticated by the caller; the registry trusts it.
type Transfer struct {
	AssetID    id.AssetID
	From       id.OwnerID
	To         id.OwnerID
	Percentage int
}

// TransferOutcome reports what ApplyTransfer did to the partition.
type TransferOutcome struct {
	FromShare   int  // share left with From (0 when it exited)
	ToShare     int  // share now held by To
	FromExited  bool // From's entry was removed
	ToAppended  bool // To was not a stakeholder before
	SelfDealing bool // From == To; the partition is unchanged
}

// CanTransfer validates t against the asset without touching it.
// Checks run in a fixed order: asset id, percentage range, sender lookup,
// sender balance.
func (a *MediaAsset) CanTransfer(t Transfer) error {
	if t.AssetID != a.AssetID {
		return dErrors.New(dErrors.CodeInvalidAssetID,
			fmt.Sprintf("asset id %q does not match %q", t.AssetID, a.AssetID))
	}
	if t.Percentage <= 0 || t.Percentage > FullOwnership {
		return dErrors.New(dErrors.CodeInvalidPercentage,
			fmt.Sprintf("percentage must be between 1 and %d, got %d", FullOwnership, t.Percentage))
	}
	i := a.Partition.IndexOf(t.From)
	if i < 0 {
		return dErrors.New(dErrors.CodeFromNotFound,
			fmt.Sprintf("%s holds no stake in %s", t.From, a.AssetID))
	}
	if current := a.Partition[i].Share; current < t.Percentage {
		return dErrors.New(dErrors.CodeInsufficientOwnership,
			fmt.Sprintf("%s holds %d%%, cannot transfer %d%%", t.From, current, t.Percentage))
	}
	return nil
}

// ApplyTransfer moves the stake. Call CanTransfer first; ApplyTransfer assumes
// the transfer is valid.
func (a *MediaAsset) ApplyTransfer(t Transfer, now time.Time) TransferOutcome {
	var out TransferOutcome
	out.SelfDealing = t.From == t.To

	if j := a.Partition.IndexOf(t.To); j >= 0 {
		a.Partition[j].Share += t.Percentage
	} else {
		a.Partition = append(a.Partition, Stake{Owner: t.To, Share: t.Percentage})
		out.ToAppended = true
	}

	// Located after the append; appending never moves existing entries.
	i := a.Partition.IndexOf(t.From)
	a.Partition[i].Share -= t.Percentage
	out.FromShare = a.Partition[i].Share
	if out.FromShare == 0 {
		a.Partition = append(a.Partition[:i], a.Partition[i+1:]...)
		out.FromExited = true
	}
	out.ToShare = a.ShareOf(t.To)

	a.Version++
	a.UpdatedAt = now
	return out
}

// TransferShare is the pure transition: it returns the asset after t, leaving
// the input untouched whether or not the transfer succeeds.
func TransferShare(a *MediaAsset, t Transfer, now time.Time) (*MediaAsset, TransferOutcome, error) {
	if err := a.CanTransfer(t); err != nil {
		return nil, TransferOutcome{}, err
	}
	next := a.Clone()
	out := next.ApplyTransfer(t, now)
	if err := next.Partition.Validate(); err != nil {
		return nil, TransferOutcome{}, err
	}
	return next, out, nil
}
