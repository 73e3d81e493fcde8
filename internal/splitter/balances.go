package splitter

import (
	"sort"

	"tripsplit/internal/domain"
)

// Summarize aggregates a trip's unsettled splits from the viewer's
// perspective. Settled splits contribute nothing. Opposing debts between
// the viewer and the same counterparty are netted into one signed figure.
//
// Amounts are summed in minor units without currency conversion; the
// summary reports the first currency seen among the trip's payments.
func Summarize(tripID, viewerID string, payments []domain.PaymentRequest) domain.BalanceSummary {
	currency := ""
	youOwe := int64(0)
	owedToYou := int64(0)
	perCounterparty := make(map[string]int64)

	for i := range payments {
		p := &payments[i]
		if currency == "" {
			currency = p.Amount.Currency
		}
		for j := range p.Splits {
			s := &p.Splits[j]
			if s.Settled {
				continue
			}
			// A member's own split on their own payment is money they
			// owe themselves; it nets to zero and is skipped.
			if s.DebtorID == p.CreatedBy {
				continue
			}
			switch {
			case s.DebtorID == viewerID:
				youOwe += s.AmountOwed.Amount
				perCounterparty[p.CreatedBy] -= s.AmountOwed.Amount
			case p.CreatedBy == viewerID:
				owedToYou += s.AmountOwed.Amount
				perCounterparty[s.DebtorID] += s.AmountOwed.Amount
			}
		}
	}

	counterparties := make([]domain.CounterpartyBalance, 0, len(perCounterparty))
	for memberID, amount := range perCounterparty {
		if amount == 0 {
			continue
		}
		counterparties = append(counterparties, domain.CounterpartyBalance{
			MemberID: memberID,
			Amount:   domain.Money{Amount: amount, Currency: currency},
		})
	}
	sort.Slice(counterparties, func(i, j int) bool {
		return counterparties[i].MemberID < counterparties[j].MemberID
	})

	return domain.BalanceSummary{
		TripID:         tripID,
		ViewerID:       viewerID,
		Currency:       currency,
		TotalYouOwe:    domain.Money{Amount: youOwe, Currency: currency},
		TotalOwedToYou: domain.Money{Amount: owedToYou, Currency: currency},
		Net:            domain.Money{Amount: owedToYou - youOwe, Currency: currency},
		Counterparties: counterparties,
	}
}
