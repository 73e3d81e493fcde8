package rest

import (
	"encoding/json"
	"io"

	"tripsplit/internal/domain"
)

type createPaymentRequest struct {
	Description    string   `json:"description"`
	Amount         string   `json:"amount"`
	Currency       string   `json:"currency"`
	ParticipantIDs []string `json:"participant_ids"`
	Methods        []string `json:"methods"`
}

func parseCreatePayment(body io.Reader) (*createPaymentRequest, error) {
	var req createPaymentRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if req.Amount == "" {
		return nil, &domain.ValidationError{Field: "amount", Message: "is required"}
	}
	if req.Currency == "" {
		return nil, &domain.ValidationError{Field: "currency", Message: "is required"}
	}
	if len(req.ParticipantIDs) == 0 {
		return nil, &domain.ValidationError{Field: "participant_ids", Message: "at least one participant is required"}
	}
	for _, m := range req.Methods {
		if !validMethod(m) {
			return nil, &domain.ValidationError{Field: "methods", Message: "unknown payment method: " + m}
		}
	}
	return &req, nil
}

type updatePaymentRequest struct {
	ExpectedVersion *int64    `json:"expected_version"`
	Description     *string   `json:"description"`
	Amount          *string   `json:"amount"`
	Currency        *string   `json:"currency"`
	ParticipantIDs  []string  `json:"participant_ids"`
	Methods         *[]string `json:"methods"`
}

// parseUpdatePayment turns the wire patch into a domain patch. The
// expected version is mandatory so every edit is an explicit
// compare-and-swap against a version the client has seen.
func parseUpdatePayment(body io.Reader) (domain.PaymentPatch, int64, error) {
	var req updatePaymentRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return domain.PaymentPatch{}, 0, &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if req.ExpectedVersion == nil {
		return domain.PaymentPatch{}, 0, &domain.ValidationError{Field: "expected_version", Message: "is required"}
	}

	patch := domain.PaymentPatch{
		Description:    req.Description,
		ParticipantIDs: req.ParticipantIDs,
	}
	if req.Methods != nil {
		for _, m := range *req.Methods {
			if !validMethod(m) {
				return domain.PaymentPatch{}, 0, &domain.ValidationError{Field: "methods", Message: "unknown payment method: " + m}
			}
		}
		patch.Methods = *req.Methods
	}
	if req.Amount != nil {
		if req.Currency == nil {
			return domain.PaymentPatch{}, 0, &domain.ValidationError{Field: "currency", Message: "is required when amount is set"}
		}
		amount, err := domain.ParseAmount(*req.Amount, *req.Currency)
		if err != nil {
			return domain.PaymentPatch{}, 0, &domain.ValidationError{Field: "amount", Message: err.Error()}
		}
		patch.Amount = &amount
	}
	return patch, *req.ExpectedVersion, nil
}

type toggleSettlementRequest struct {
	ExpectedVersion *int64  `json:"expected_version"`
	Settled         *bool   `json:"settled"`
	Method          *string `json:"method"`
}

func parseToggleSettlement(body io.Reader) (*toggleSettlementRequest, error) {
	var req toggleSettlementRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, &domain.ValidationError{Field: "body", Message: "invalid JSON"}
	}
	if req.ExpectedVersion == nil {
		return nil, &domain.ValidationError{Field: "expected_version", Message: "is required"}
	}
	if req.Settled == nil {
		return nil, &domain.ValidationError{Field: "settled", Message: "is required"}
	}
	if req.Method != nil && *req.Method != "" && !validMethod(*req.Method) {
		return nil, &domain.ValidationError{Field: "method", Message: "unknown payment method: " + *req.Method}
	}
	return &req, nil
}

func validMethod(m string) bool {
	switch m {
	case domain.MethodManual, domain.MethodCash, domain.MethodTransfer, domain.MethodPayPal:
		return true
	}
	return false
}
