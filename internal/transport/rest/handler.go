package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tripsplit/internal/domain"
	"tripsplit/internal/service"
	"tripsplit/internal/transport/auth"
)

// Handler exposes the payment engine over HTTP. Every route below sits
// behind the bearer middleware, so the member and their capabilities are
// always in the request context.
type Handler struct {
	payments    *service.PaymentService
	settlements *service.SettlementService
	balances    *service.BalanceService
	quota       *service.QuotaService
	exports     *service.ExportService
}

func NewHandler(payments *service.PaymentService, settlements *service.SettlementService, balances *service.BalanceService, quota *service.QuotaService, exports *service.ExportService) *Handler {
	return &Handler{
		payments:    payments,
		settlements: settlements,
		balances:    balances,
		quota:       quota,
		exports:     exports,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/trips/{trip_id}", func(r chi.Router) {
		r.Get("/payments", h.listPayments)
		r.Post("/payments", h.createPayment)
		r.Get("/balance", h.getBalance)
		r.Get("/quota", h.getQuota)
		r.Post("/export", h.startExport)
	})

	r.Route("/payments/{payment_id}", func(r chi.Router) {
		r.Patch("/", h.updatePayment)
		r.Delete("/", h.deletePayment)
	})

	r.Post("/splits/{split_id}/settlement", h.toggleSettlement)

	r.Get("/exports", h.listExports)
	r.Get("/exports/{export_id}", h.getExport)

	return r
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := parseCreatePayment(r.Body)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	payment, err := h.payments.Create(r.Context(), service.CreatePaymentInput{
		TripID:         chi.URLParam(r, "trip_id"),
		CreatorID:      member.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Description:    req.Description,
		ParticipantIDs: req.ParticipantIDs,
		Methods:        req.Methods,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	SuccessCreated(w, "Payment request created", paymentJSON(payment))
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.ListByTrip(r.Context(), chi.URLParam(r, "trip_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]map[string]any, len(payments))
	for i := range payments {
		out[i] = paymentJSON(&payments[i])
	}
	Success(w, "Payment requests retrieved", out)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	patch, expectedVersion, err := parseUpdatePayment(r.Body)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	payment, err := h.payments.Update(r.Context(), chi.URLParam(r, "payment_id"), expectedVersion, patch, member, auth.GetCapabilities(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Payment request updated", paymentJSON(payment))
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.payments.Delete(r.Context(), chi.URLParam(r, "payment_id"), member, auth.GetCapabilities(r.Context())); err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Payment request deleted", nil)
}

func (h *Handler) toggleSettlement(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	req, err := parseToggleSettlement(r.Body)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	result, err := h.settlements.Toggle(r.Context(), chi.URLParam(r, "split_id"), *req.ExpectedVersion, *req.Settled, req.Method, member, auth.GetCapabilities(r.Context()))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Settlement updated", map[string]any{
		"split":         splitJSON(result.Split),
		"settled_count": result.SettledCount,
		"split_count":   result.SplitCount,
		"is_settled":    result.IsSettled,
	})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	summary, err := h.balances.Summary(r.Context(), chi.URLParam(r, "trip_id"), member.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Balance retrieved", balanceJSON(summary))
}

func (h *Handler) getQuota(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	remaining, err := h.quota.Remaining(r.Context(), member, chi.URLParam(r, "trip_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Quota retrieved", map[string]any{
		"tier":      member.Tier,
		"remaining": remaining,
		"unlimited": remaining == domain.UnlimitedQuota,
	})
}

func (h *Handler) startExport(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportID, err := h.exports.StartTripExport(r.Context(), chi.URLParam(r, "trip_id"), member.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	SuccessAccepted(w, "Export started", map[string]any{"export_id": exportID})
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exports.GetExports(r.Context(), member.ID)
	if err != nil {
		ErrorInternal(w, "Failed to retrieve exports")
		return
	}

	Success(w, "Exports retrieved", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	member, err := auth.GetMember(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	export, err := h.exports.GetExport(r.Context(), chi.URLParam(r, "export_id"), member.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	Success(w, "Export retrieved", export)
}

func paymentJSON(p *domain.PaymentRequest) map[string]any {
	splits := make([]map[string]any, len(p.Splits))
	for i := range p.Splits {
		splits[i] = splitJSON(&p.Splits[i])
	}
	return map[string]any{
		"id":              p.ID,
		"trip_id":         p.TripID,
		"description":     p.Description,
		"amount":          p.Amount.String(),
		"currency":        p.Amount.Currency,
		"created_by":      p.CreatedBy,
		"participant_ids": p.ParticipantIDs,
		"methods":         p.Methods,
		"splits":          splits,
		"settled_count":   p.SettledCount(),
		"split_count":     len(p.Splits),
		"is_settled":      p.IsSettled(),
		"version":         p.Version,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
}

func splitJSON(s *domain.PaymentSplit) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"payment_id":  s.PaymentID,
		"debtor_id":   s.DebtorID,
		"amount_owed": s.AmountOwed.String(),
		"currency":    s.AmountOwed.Currency,
		"settled":     s.Settled,
		"settled_at":  s.SettledAt,
		"method":      s.Method,
		"version":     s.Version,
		"updated_at":  s.UpdatedAt,
	}
}

func balanceJSON(b domain.BalanceSummary) map[string]any {
	counterparties := make([]map[string]any, len(b.Counterparties))
	for i, c := range b.Counterparties {
		counterparties[i] = map[string]any{
			"member_id": c.MemberID,
			"amount":    c.Amount.String(),
			"currency":  c.Amount.Currency,
		}
	}
	return map[string]any{
		"trip_id":          b.TripID,
		"viewer_id":        b.ViewerID,
		"currency":         b.Currency,
		"total_you_owe":    b.TotalYouOwe.String(),
		"total_owed_to_you": b.TotalOwedToYou.String(),
		"net":              b.Net.String(),
		"counterparties":   counterparties,
	}
}
