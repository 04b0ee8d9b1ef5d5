package studio

import (
	"studiodesk/internal/model"
	"studiodesk/internal/viewmodel"
)

// StatusAll disables the payment status filter.
const StatusAll = "all"

// PaymentSummary totals the ledger.
type PaymentSummary struct {
	Total     float64 `json:"total"`
	Completed float64 `json:"completed"`
	Pending   float64 `json:"pending"`
}

// SummarizePayments totals every payment, not just the filtered ones.
func SummarizePayments(items []model.Payment) PaymentSummary {
	var s PaymentSummary
	for _, p := range items {
		s.Total += p.Amount
		switch p.Status {
		case model.PaymentCompleted:
			s.Completed += p.Amount
		case model.PaymentPending:
			s.Pending += p.Amount
		}
	}
	return s
}

// FilterPayments applies the search box and the status selector.
func FilterPayments(items []model.Payment, q, status string) []model.Payment {
	matched := viewmodel.FilterItems(items, q)
	if status == "" || status == StatusAll {
		return matched
	}
	out := make([]model.Payment, 0, len(matched))
	for _, p := range matched {
		if p.Status == status {
			out = append(out, p)
		}
	}
	return out
}
