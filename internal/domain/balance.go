package domain

// CounterpartyBalance is the net signed amount between the viewer and one
// other member. Positive means the counterparty owes the viewer.
type CounterpartyBalance struct {
	MemberID string
	Amount   Money
}

// BalanceSummary is the per-viewer aggregation over a trip's unsettled
// splits. Derived on every read, never persisted.
type BalanceSummary struct {
	TripID   string
	ViewerID string

	// Currency is the reporting currency: the first currency seen among
	// the trip's payments. Amounts in other currencies are summed without
	// conversion, a documented limitation of the ledger.
	Currency string

	TotalYouOwe    Money
	TotalOwedToYou Money
	Net            Money

	Counterparties []CounterpartyBalance
}
