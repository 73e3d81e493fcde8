// Package splitter contains the pure split and balance calculations.
// Nothing here touches storage; callers feed it domain values and get
// back drafts or summaries.
package splitter

import (
	"tripsplit/internal/domain"
)

// SplitDraft is one participant's computed share before persistence.
type SplitDraft struct {
	DebtorID   string
	AmountOwed domain.Money
}

// ComputeSplits derives the equal per-participant share of amount.
// Each participant gets amount/len(participants) truncated to the minor
// unit; residual units are not reallocated, so the sum of shares may fall
// short of the amount by at most len(participants)-1 minor units.
//
// Participant ids are deduplicated. The creator is treated literally: if
// listed as a participant they receive a split like anyone else.
func ComputeSplits(amount domain.Money, participantIDs []string) ([]SplitDraft, error) {
	if !amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}

	seen := make(map[string]bool, len(participantIDs))
	unique := make([]string, 0, len(participantIDs))
	for _, id := range participantIDs {
		if id == "" {
			return nil, &domain.ValidationError{Field: "participant_ids", Message: "participant id cannot be empty"}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, &domain.ValidationError{Field: "participant_ids", Message: "at least one participant is required"}
	}

	share, err := amount.SplitEqual(len(unique))
	if err != nil {
		return nil, err
	}
	if share.Amount == 0 {
		return nil, &domain.ValidationError{Field: "amount", Message: "too small to divide among the participants"}
	}

	drafts := make([]SplitDraft, len(unique))
	for i, id := range unique {
		drafts[i] = SplitDraft{DebtorID: id, AmountOwed: share}
	}
	return drafts, nil
}
