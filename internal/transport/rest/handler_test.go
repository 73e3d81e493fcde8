package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"tripsplit/internal/config"
	"tripsplit/internal/domain"
	"tripsplit/internal/repository"
	"tripsplit/internal/service"
	"tripsplit/internal/transport/auth"
)

// newTestServer wires the handler against the in-memory backends, the
// same composition the demo mode runs.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := repository.NewMemoryStore()
	dir := repository.NewMemoryMemberDirectory()

	now := time.Now().UTC()
	for _, m := range []domain.Member{
		{ID: "alice", DisplayName: "Alice", Tier: domain.TierFree, Role: domain.RoleMember, CreatedAt: now},
		{ID: "bob", DisplayName: "Bob", Tier: domain.TierFree, Role: domain.RoleMember, CreatedAt: now},
		{ID: "carol", DisplayName: "Carol", Tier: domain.TierFree, Role: domain.RoleMember, CreatedAt: now},
	} {
		dir.Members[m.ID] = m
	}
	dir.Trips["t1"] = []string{"alice", "bob", "carol"}

	quota := service.NewQuotaService(store, config.QuotaConfig{
		FreeCeiling: 2,
		PlusCeiling: domain.UnlimitedQuota,
		ProCeiling:  domain.UnlimitedQuota,
	})
	payments := service.NewPaymentService(store, dir, quota, nil)
	settlements := service.NewSettlementService(store, dir, nil, false)
	balances := service.NewBalanceService(store)
	exports := service.NewExportService(store, dir, nil, nil, nil)

	handler := NewHandler(payments, settlements, balances, quota, exports)

	r := chi.NewRouter()
	r.Use(auth.BearerMiddleware(nil, dir))
	r.Mount("/", handler.Routes())

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, memberID string, body any) (*http.Response, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Member-ID", memberID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, envelope
}

func createPaymentReq(amount string, participants ...string) map[string]any {
	return map[string]any{
		"description":     "dinner",
		"amount":          amount,
		"currency":        "EUR",
		"participant_ids": participants,
		"methods":         []string{domain.MethodPayPal},
	}
}

func TestCreateAndListPayments(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("90.00", "alice", "bob", "carol"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.StatusCode, envelope.Message)
	}

	data := envelope.Data.(map[string]any)
	if data["amount"] != "90.00" || data["version"] != float64(1) {
		t.Fatalf("unexpected payment payload: %+v", data)
	}
	if data["is_settled"] != false || data["split_count"] != float64(3) {
		t.Fatalf("unexpected derived state: %+v", data)
	}

	resp, envelope = doJSON(t, ts, http.MethodGet, "/trips/t1/payments", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if list := envelope.Data.([]any); len(list) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(list))
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("12.345", "alice", "bob"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad amount, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", map[string]any{
		"amount": "10.00", "currency": "EUR",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing participants, got %d", resp.StatusCode)
	}
}

func TestQuotaExceededResponse(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp, envelope := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("10.00", "alice", "bob"))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: expected 201, got %d (%s)", i, resp.StatusCode, envelope.Message)
		}
	}

	resp, envelope := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("10.00", "alice", "bob"))
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.StatusCode)
	}
	if envelope.Status != "quota_exceeded" {
		t.Fatalf("expected quota_exceeded status, got %q", envelope.Status)
	}

	resp, envelope = doJSON(t, ts, http.MethodGet, "/trips/t1/quota", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if remaining := envelope.Data.(map[string]any)["remaining"]; remaining != float64(0) {
		t.Fatalf("expected 0 remaining, got %v", remaining)
	}
}

func TestUpdateConflictResponse(t *testing.T) {
	ts := newTestServer(t)

	_, created := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("90.00", "alice", "bob", "carol"))
	paymentID := created.Data.(map[string]any)["id"].(string)

	resp, _ := doJSON(t, ts, http.MethodPatch, "/payments/"+paymentID, "alice", map[string]any{
		"expected_version": 1,
		"description":      "brunch",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first edit: expected 200, got %d", resp.StatusCode)
	}

	resp, envelope := doJSON(t, ts, http.MethodPatch, "/payments/"+paymentID, "alice", map[string]any{
		"expected_version": 1,
		"description":      "lunch",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	data := envelope.Data.(map[string]any)
	if data["actual_version"] != float64(2) {
		t.Fatalf("expected actual_version 2, got %v", data["actual_version"])
	}
	current := data["current"].(map[string]any)
	if current["description"] != "brunch" {
		t.Fatalf("expected authoritative record in response, got %+v", current)
	}
}

func TestUpdatePermissionResponse(t *testing.T) {
	ts := newTestServer(t)

	_, created := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("90.00", "alice", "bob"))
	paymentID := created.Data.(map[string]any)["id"].(string)

	resp, _ := doJSON(t, ts, http.MethodPatch, "/payments/"+paymentID, "bob", map[string]any{
		"expected_version": 1,
		"description":      "not mine",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodDelete, "/payments/"+paymentID, "bob", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 on delete, got %d", resp.StatusCode)
	}
}

func TestSettlementFlow(t *testing.T) {
	ts := newTestServer(t)

	_, created := doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("90.00", "alice", "bob", "carol"))
	splits := created.Data.(map[string]any)["splits"].([]any)

	var bobSplitID string
	for _, raw := range splits {
		s := raw.(map[string]any)
		if s["debtor_id"] == "bob" {
			bobSplitID = s["id"].(string)
		}
	}
	if bobSplitID == "" {
		t.Fatal("no split for bob")
	}

	resp, envelope := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/splits/%s/settlement", bobSplitID), "bob", map[string]any{
		"expected_version": 1,
		"settled":          true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, envelope.Message)
	}
	data := envelope.Data.(map[string]any)
	if data["settled_count"] != float64(1) || data["is_settled"] != false {
		t.Fatalf("unexpected derived state: %+v", data)
	}

	// replay with the consumed version conflicts
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/splits/%s/settlement", bobSplitID), "bob", map[string]any{
		"expected_version": 1,
		"settled":          true,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", resp.StatusCode)
	}

	// carol cannot toggle bob's split
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/splits/%s/settlement", bobSplitID), "carol", map[string]any{
		"expected_version": 2,
		"settled":          false,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	ts := newTestServer(t)

	doJSON(t, ts, http.MethodPost, "/trips/t1/payments", "alice", createPaymentReq("90.00", "alice", "bob", "carol"))

	resp, envelope := doJSON(t, ts, http.MethodGet, "/trips/t1/balance", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := envelope.Data.(map[string]any)
	if data["total_you_owe"] != "30.00" || data["net"] != "-30.00" {
		t.Fatalf("unexpected balance: %+v", data)
	}

	resp, envelope = doJSON(t, ts, http.MethodGet, "/trips/t1/balance", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data = envelope.Data.(map[string]any)
	if data["total_owed_to_you"] != "60.00" {
		t.Fatalf("unexpected balance for creator: %+v", data)
	}
}

func TestNotFoundResponses(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPatch, "/payments/missing", "alice", map[string]any{
		"expected_version": 1,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/splits/missing/settlement", "alice", map[string]any{
		"expected_version": 1,
		"settled":          true,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUnauthorizedWithoutMember(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/trips/t1/payments", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
