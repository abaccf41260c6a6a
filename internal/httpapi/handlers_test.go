package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/notify"
	"dukapos/backend/internal/service"
	"dukapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopReportCache{}, notify.Noop{}, "main-shop", time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*")
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

// loginAs logs in through the full handler stack and returns the access token.
func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

// fetchCSRFToken retrieves a token from the CSRF endpoint.
func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d %s", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf body: %v", err)
	}
	return body["csrf_token"]
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	// Fire 6 requests from the same "IP" (httptest uses RemoteAddr "192.0.2.1:1234").
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleSales_CompleteAndFetchReceipt(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, handler)

	salePayload, _ := json.Marshal(map[string]any{
		"department_id":    "main-shop",
		"payment_method":   "cash",
		"amount_paid_cents": 20000,
		"lines": []map[string]any{
			{"product_id": "prod-soap-01", "quantity": 2},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(salePayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Receipt domain.SaleReceipt `json:"receipt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale response: %v", err)
	}
	if created.Receipt.TotalCents != 19000 {
		t.Fatalf("expected total 19000, got %d", created.Receipt.TotalCents)
	}
	if created.Receipt.ChangeCents != 1000 {
		t.Fatalf("expected change 1000, got %d", created.Receipt.ChangeCents)
	}

	fetchReq := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+created.Receipt.SaleID+"/receipt", nil)
	fetchReq.Header.Set("Authorization", "Bearer "+token)
	fetchRec := httptest.NewRecorder()
	handler.ServeHTTP(fetchRec, fetchReq)

	if fetchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching receipt, got %d (body: %s)", fetchRec.Code, fetchRec.Body.String())
	}
}

func TestHandleSales_MutationRequiresCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "cashier", "cashier123")

	salePayload, _ := json.Marshal(map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{{"product_id": "prod-soap-01", "quantity": 1}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(salePayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestHandleSales_EmptyCartIsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, handler)

	salePayload, _ := json.Marshal(map[string]any{
		"payment_method": "cash",
		"lines":          []map[string]any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(salePayload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleVoidSale_RequiresManagerPIN(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")
	csrf := fetchCSRFToken(t, handler)

	payload, _ := json.Marshal(map[string]any{
		"reason":      "test void",
		"manager_pin": "000000",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/sale-unknown/void", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong manager PIN, got %d", rec.Code)
	}
}

func TestHandleReports_RequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/revenue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier on reports, got %d", rec.Code)
	}
}

func TestHandleReports_CSVExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/revenue?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Fatalf("expected csv content type, got %s", ct)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("adjusted_sales_cents")) {
		t.Fatalf("expected adjusted_sales_cents row in CSV, got %s", rec.Body.String())
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
