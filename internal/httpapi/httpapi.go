package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/service"
	"dukapos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "cashier", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "cashier", "admin"))
	mux.HandleFunc("/api/v1/services", a.requireAuth(a.handleServices, "cashier", "admin"))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, "cashier", "admin"))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/credits", a.requireAuth(a.handleCredits, "cashier", "admin"))
	mux.HandleFunc("/api/v1/credits/", a.requireAuth(a.handleCreditActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/reconciliations", a.requireAuth(a.handleReconciliations, "cashier", "admin"))
	mux.HandleFunc("/api/v1/reconciliations/", a.requireAuth(a.handleReconciliationActions, "admin"))
	mux.HandleFunc("/api/v1/suspended-revenue", a.requireAuth(a.handleSuspendedRevenue, "cashier", "admin"))
	mux.HandleFunc("/api/v1/suspended-revenue/", a.requireAuth(a.handleSuspendedRevenueActions, "admin"))

	mux.HandleFunc("/api/v1/expenses", a.requireAuth(a.handleExpenses, "cashier", "admin"))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions, "cashier", "admin"))

	mux.HandleFunc("/api/v1/reports/revenue", a.requireAuth(a.handleRevenueReport, "admin"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "admin"))
	mux.HandleFunc("/api/v1/users/cashiers", a.requireAuth(a.handleCashiers, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// errorStatus maps domain errors to HTTP statuses. Stock and state
// transition conflicts surface as 409 so clients can distinguish a retry
// from a bad request.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidRequest),
		errors.Is(err, store.ErrEmptyCart),
		errors.Is(err, store.ErrUnitMismatch):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrAmbiguousScent),
		errors.Is(err, store.ErrAlreadyVoided),
		errors.Is(err, store.ErrAlreadyDecided),
		errors.Is(err, store.ErrAlreadySettled),
		errors.Is(err, store.ErrNotApproved),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrPersistence):
		return http.StatusInternalServerError
	case strings.Contains(strings.ToLower(err.Error()), "admin role required"):
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods (POST/PUT/PATCH).
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		departmentID := r.URL.Query().Get("department_id")
		products, err := a.service.ListProducts(r.Context(), departmentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/products/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid product action path"))
		return
	}

	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if strings.HasSuffix(tail, "/stock") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		productID := strings.Trim(strings.TrimSuffix(tail, "/stock"), "/")
		if productID == "" {
			writeError(w, http.StatusBadRequest, errors.New("product id required"))
			return
		}

		var req domain.StockAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		level, err := a.service.AdjustStock(r.Context(), productID, req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"stock": level})
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), tail)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := a.service.UpdateProduct(r.Context(), tail, req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleServices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		departmentID := r.URL.Query().Get("department_id")
		services, err := a.service.ListServices(r.Context(), departmentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": services})
	case http.MethodPost:
		var req domain.ServiceCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		svc, err := a.service.CreateService(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"service": svc})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		departmentID := r.URL.Query().Get("department_id")
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

		sales, err := a.service.ListSales(r.Context(), departmentID, from, to, limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		receipt, err := a.service.CompleteSale(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"receipt": receipt})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/sales/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid sale action path"))
		return
	}

	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}

	if strings.HasSuffix(tail, "/void") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		saleID := strings.Trim(strings.TrimSuffix(tail, "/void"), "/")

		var req domain.VoidSaleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.SaleID = saleID

		if !a.pinLimiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many PIN attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
			writeError(w, http.StatusForbidden, errors.New("invalid manager PIN"))
			return
		}

		resp, err := a.service.VoidSale(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if strings.HasSuffix(tail, "/receipt") {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		saleID := strings.Trim(strings.TrimSuffix(tail, "/receipt"), "/")

		receipt, err := a.service.GetReceipt(r.Context(), saleID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sale, err := a.service.GetSale(r.Context(), tail)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleCredits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		limit := parsePositiveLimit(q.Get("limit"), 100, 500)
		credits, err := a.service.ListCredits(r.Context(), q.Get("department_id"), q.Get("approval_status"), q.Get("counterpart"), q.Get("from"), q.Get("to"), limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"credits": credits})
	case http.MethodPost:
		var req domain.CreditCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		credit, err := a.service.CreateCredit(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"credit": credit})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCreditActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/credits/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid credit action path"))
		return
	}

	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("credit id required"))
		return
	}

	if tail == "totals" {
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		q := r.URL.Query()
		totals, err := a.service.CreditTotals(r.Context(), q.Get("department_id"), q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
		return
	}

	if strings.HasSuffix(tail, "/approval") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		creditID := strings.Trim(strings.TrimSuffix(tail, "/approval"), "/")

		var req domain.CreditApprovalRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		credit, err := a.service.DecideCredit(r.Context(), creditID, req.Status)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"credit": credit})
		return
	}

	if strings.HasSuffix(tail, "/settle") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		creditID := strings.Trim(strings.TrimSuffix(tail, "/settle"), "/")

		credit, err := a.service.SettleCredit(r.Context(), creditID)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"credit": credit})
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	credit, err := a.service.GetCredit(r.Context(), tail)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credit": credit})
}

func (a *API) handleReconciliations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		limit := parsePositiveLimit(q.Get("limit"), 100, 500)
		recs, err := a.service.ListReconciliations(r.Context(), q.Get("department_id"), q.Get("from"), q.Get("to"), limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reconciliations": recs})
	case http.MethodPost:
		var req domain.ReconcileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		result, err := a.service.Reconcile(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReconciliationActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/reconciliations/"
	if !strings.HasPrefix(r.URL.Path, prefix) || !strings.HasSuffix(r.URL.Path, "/decision") {
		writeError(w, http.StatusBadRequest, errors.New("invalid reconciliation action path"))
		return
	}
	reconciliationID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, prefix), "/decision")
	reconciliationID = strings.TrimSpace(strings.Trim(reconciliationID, "/"))
	if reconciliationID == "" {
		writeError(w, http.StatusBadRequest, errors.New("reconciliation id required"))
		return
	}

	var req domain.ReconciliationDecisionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := a.service.DecideReconciliation(r.Context(), reconciliationID, req.Status)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reconciliation": rec})
}

func (a *API) handleSuspendedRevenue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		limit := parsePositiveLimit(q.Get("limit"), 100, 500)
		rows, err := a.service.ListSuspendedRevenue(r.Context(), q.Get("department_id"), q.Get("status"), limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suspended_revenue": rows})
	case http.MethodPost:
		var req domain.SuspendedRevenueCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		created, err := a.service.CreateSuspendedRevenue(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"suspended_revenue": created})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSuspendedRevenueActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/suspended-revenue/"
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("suspended revenue id required"))
		return
	}

	var req domain.SuspendedRevenueUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := a.service.UpdateSuspendedRevenue(r.Context(), id, req)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suspended_revenue": updated})
}

func (a *API) handleExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		limit := parsePositiveLimit(q.Get("limit"), 100, 500)
		expenses, err := a.service.ListExpenses(r.Context(), q.Get("department_id"), q.Get("from"), q.Get("to"), limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
	case http.MethodPost:
		var req domain.ExpenseCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		exp, err := a.service.CreateExpense(r.Context(), req)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"expense": exp})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/customers/"
	tail := strings.TrimPrefix(r.URL.Path, prefix)

	if strings.HasSuffix(tail, "/suggestions") {
		customerID := strings.TrimSpace(strings.Trim(strings.TrimSuffix(tail, "/suggestions"), "/"))
		if customerID == "" {
			writeError(w, http.StatusBadRequest, errors.New("customer id required"))
			return
		}
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 3, 10)

		suggestions, err := a.service.SuggestScents(r.Context(), customerID, r.URL.Query().Get("department_id"), limit)
		if err != nil {
			writeError(w, errorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
		return
	}

	if !strings.HasSuffix(tail, "/preferences") {
		writeError(w, http.StatusBadRequest, errors.New("invalid customer action path"))
		return
	}
	customerID := strings.TrimSpace(strings.Trim(strings.TrimSuffix(tail, "/preferences"), "/"))
	if customerID == "" {
		writeError(w, http.StatusBadRequest, errors.New("customer id required"))
		return
	}

	pref, err := a.service.GetCustomerPreference(r.Context(), customerID)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"preference": pref})
}

func (a *API) handleRevenueReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))

	report, err := a.service.RevenueReport(r.Context(), q.Get("department_id"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"revenue-report-%s.csv\"", report.To))
		_, _ = w.Write([]byte(revenueReportToCSV(report)))
	case "pdf":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(revenueReportToPrintableHTML(report)))
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	departmentID := r.URL.Query().Get("department_id")
	date := r.URL.Query().Get("date")
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	logs, err := a.service.ListAuditLogs(r.Context(), departmentID, date, limit)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleCashiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cashiers := a.auth.ListCashiers(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"cashiers": cashiers})
	case http.MethodPost:
		var req domain.CashierCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cashier, err := a.auth.CreateCashier(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func revenueReportToCSV(report domain.RevenueReport) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,department_id,%s", report.DepartmentID),
		fmt.Sprintf("summary,from,%s", report.From),
		fmt.Sprintf("summary,to,%s", report.To),
		fmt.Sprintf("summary,gross_sales_cents,%d", report.GrossSalesCents),
		fmt.Sprintf("summary,unsettled_credits_in_cents,%d", report.UnsettledCreditsInCents),
		fmt.Sprintf("summary,unsettled_credits_out_cents,%d", report.UnsettledCreditsOutCents),
		fmt.Sprintf("summary,settled_credits_in_cents,%d", report.SettledCreditsInCents),
		fmt.Sprintf("summary,settled_credits_out_cents,%d", report.SettledCreditsOutCents),
		fmt.Sprintf("summary,expense_cents,%d", report.ExpenseCents),
		fmt.Sprintf("summary,reconciliation_discrepancy_cents,%d", report.ReconciliationDiscrepancyCents),
		fmt.Sprintf("summary,suspended_revenue_cents,%d", report.SuspendedRevenueCents),
		fmt.Sprintf("summary,adjusted_sales_cents,%d", report.AdjustedSalesCents),
		fmt.Sprintf("summary,cogs_cents,%d", report.COGSCents),
		fmt.Sprintf("summary,coso_cents,%d", report.COSOCents),
		fmt.Sprintf("summary,gross_profit_cents,%d", report.GrossProfitCents),
		fmt.Sprintf("summary,adjusted_gross_profit_cents,%d", report.AdjustedGrossProfitCents),
	}
	for _, payment := range report.SalesByPayment {
		lines = append(lines, fmt.Sprintf("payment,%s_total_cents,%d", payment.PaymentMethod, payment.TotalCents))
	}
	return strings.Join(lines, "\n") + "\n"
}

// revenueReportHTMLTmpl is the html/template used to render printable revenue reports.
// All user-controlled fields are auto-escaped by html/template to prevent XSS.
var revenueReportHTMLTmpl = template.Must(template.New("revenue-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Revenue Report {{.From}} to {{.To}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Revenue Report {{.From}} to {{.To}}</h2>
  <p>Department: {{.DepartmentID}}</p>
  <p>Gross: {{.GrossSalesCents}} | Adjusted: {{.AdjustedSalesCents}} | Gross Profit: {{.GrossProfitCents}} | Adjusted Gross Profit: {{.AdjustedGrossProfitCents}}</p>
  <p>Credits in/out (unsettled): {{.UnsettledCreditsInCents}}/{{.UnsettledCreditsOutCents}} | Credits in/out (settled): {{.SettledCreditsInCents}}/{{.SettledCreditsOutCents}}</p>
  <p>Expenses: {{.ExpenseCents}} | Reconciliation: {{.ReconciliationDiscrepancyCents}} | Suspended: {{.SuspendedRevenueCents}}</p>

  <h3>Sales By Payment</h3>
  <table>
    <thead><tr><th>Payment</th><th>Total Cents</th></tr></thead>
    <tbody>{{range .SalesByPayment}}<tr><td>{{.PaymentMethod}}</td><td style="text-align:right;">{{.TotalCents}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func revenueReportToPrintableHTML(report domain.RevenueReport) string {
	var buf bytes.Buffer
	if err := revenueReportHTMLTmpl.Execute(&buf, report); err != nil {
		// Fallback: return a plain-text error page rather than leaking internal details.
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
