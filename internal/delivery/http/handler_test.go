package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	mockdispatch "github.com/Harsh-BH/bulkcheck/internal/dispatch/mock"
	"github.com/Harsh-BH/bulkcheck/internal/domain"
	"github.com/Harsh-BH/bulkcheck/internal/ratelimit"
	mockrepo "github.com/Harsh-BH/bulkcheck/internal/repository/mock"
	"github.com/Harsh-BH/bulkcheck/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, address string, _ domain.VerifyOptions) domain.Verdict {
	return domain.Verdict{Email: address, State: domain.StateDeliverable, Score: 100, SyntaxValid: true, DNSValid: true}
}

const testGatewaySecret = "gw-secret"

func gatewayHeaders(orgID, userID string) map[string]string {
	return map[string]string{
		"X-Org-ID":         orgID,
		"X-User-ID":        userID,
		"X-Gateway-Secret": testGatewaySecret,
	}
}

type testEnv struct {
	router     *gin.Engine
	repo       *mockrepo.MockJobRepository
	dispatcher *mockdispatch.MockDispatcher
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	repo := mockrepo.NewMockJobRepository()
	dispatcher := mockdispatch.NewMockDispatcher()
	logger := zap.NewNop()

	limiter := ratelimit.NewMemoryLimiter(time.Minute)
	t.Cleanup(func() { _ = limiter.Close() })

	router := NewRouter(RouterDeps{
		CreateJob:   usecase.NewCreateJobUsecase(repo, dispatcher, nil, nil, 5, logger),
		GetJob:      usecase.NewGetJobUsecase(repo, logger),
		Verify:      usecase.NewVerifyAddressUsecase(stubVerifier{}, logger),
		Limiter:     limiter,
		VerifyClass: ratelimit.Class{Name: "verify", Limit: 2, Window: time.Minute},
		BulkClass:   ratelimit.Class{Name: "bulk", Limit: 10, Window: time.Hour},
		HealthChecks: []HealthCheck{
			{Name: "store", Check: repo.Ping},
		},
		GatewaySecret: testGatewaySecret,
		Logger:        logger,
	})

	return &testEnv{router: router, repo: repo, dispatcher: dispatcher}
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal error body: %v (%s)", err, w.Body.String())
	}
	if body.Success {
		t.Errorf("expected success=false in error body")
	}
	return body.Error
}

func completedJob(token string, items ...string) *domain.Job {
	now := time.Now().UTC()
	results := make([]domain.Verdict, len(items))
	for i, item := range items {
		results[i] = domain.Verdict{Email: item, State: domain.StateDeliverable, Score: 100}
	}
	return &domain.Job{
		ID:          uuid.Must(uuid.NewV7()),
		Status:      domain.StatusCompleted,
		Items:       items,
		Results:     results,
		Stats:       &domain.Stats{Total: len(items), Deliverable: len(items)},
		AccessToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
		CompletedAt: &now,
	}
}

func TestCreateHandler_Success(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/v1/bulk", map[string]any{
		"items": []string{"a@example.com", "b@example.com", "A@example.com"},
	}, nil)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.CreateJobResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.JobID == uuid.Nil {
		t.Error("expected non-empty job ID")
	}
	if resp.AccessToken == "" {
		t.Error("expected access token for anonymous job")
	}
	if resp.ItemCount != 2 {
		t.Errorf("expected 2 items after dedupe, got %d", resp.ItemCount)
	}
	if resp.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", resp.Status)
	}
	if env.dispatcher.Count() != 1 {
		t.Errorf("expected 1 dispatched job, got %d", env.dispatcher.Count())
	}
}

func TestCreateHandler_OwnerGetsNoToken(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/v1/bulk", map[string]any{
		"items": []string{"a@example.com"},
	}, gatewayHeaders("org-1", "user-1"))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.CreateJobResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.AccessToken != "" {
		t.Error("owner jobs must not carry an access token")
	}
	if w.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("owner requests must not be rate limited")
	}
}

func TestCreateHandler_ForgedOrgHeaderIsRateLimited(t *testing.T) {
	env := setupTestRouter(t)
	forged := map[string]string{"X-Org-ID": "anything", "X-Forwarded-For": "203.0.113.50"}
	body := map[string]any{"items": []string{"a@example.com"}}

	for i := 0; i < 10; i++ {
		w := env.do(http.MethodPost, "/api/v1/bulk", body, forged)
		if w.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected status 202, got %d: %s", i, w.Code, w.Body.String())
		}
		var resp domain.CreateJobResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.AccessToken == "" {
			t.Fatalf("request %d: a forged organization must still get an anonymous token job", i)
		}
	}

	w := env.do(http.MethodPost, "/api/v1/bulk", body, forged)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 past the bulk limit, got %d", w.Code)
	}
	if env.dispatcher.Count() != 10 {
		t.Errorf("expected 10 dispatched jobs, got %d", env.dispatcher.Count())
	}
	for _, job := range env.repo.GetAll() {
		if job.Owner != nil {
			t.Errorf("job %s was created with a forged owner %+v", job.ID, job.Owner)
		}
	}
}

func TestStatusHandler_ForgedOrgHeaderCannotReadOwnerJob(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("", "a@example.com")
	job.Owner = &domain.Owner{OrgID: "org-1", UserID: "user-1"}
	env.repo.Put(job)
	path := "/api/v1/bulk/" + job.ID.String()

	w := env.do(http.MethodGet, path, nil, map[string]string{"X-Org-ID": "org-1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("forged header: expected status 404, got %d", w.Code)
	}

	w = env.do(http.MethodGet, path, nil, gatewayHeaders("org-1", "user-2"))
	if w.Code != http.StatusOK {
		t.Errorf("gateway owner: expected status 200, got %d", w.Code)
	}
}

func TestCreateHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing items", map[string]any{}},
		{"empty items", map[string]any{"items": []string{}}},
		{"blank items", map[string]any{"items": []string{"  ", ""}}},
		{"invalid item", map[string]any{"items": []string{"not-an-email"}}},
		{"too many", map[string]any{"items": []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io", "e@x.io", "f@x.io"}}},
		{"wrong type", map[string]any{"items": "a@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestRouter(t)
			w := env.do(http.MethodPost, "/api/v1/bulk", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			if msg := decodeError(t, w); msg == "" {
				t.Error("expected error message")
			}
			if env.dispatcher.Count() != 0 {
				t.Error("nothing should be dispatched")
			}
		})
	}
}

func TestCreateHandler_DispatchFailure(t *testing.T) {
	env := setupTestRouter(t)
	env.dispatcher.DispatchFn = func(context.Context, *domain.Job) error {
		return errors.New("queue full")
	}

	w := env.do(http.MethodPost, "/api/v1/bulk", map[string]any{"items": []string{"a@example.com"}}, nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	jobs := env.repo.GetAll()
	if len(jobs) != 1 || jobs[0].Status != domain.StatusFailed {
		t.Errorf("expected the undispatched job to be failed, got %+v", jobs)
	}
}

func TestCreateHandler_StoreUnavailable(t *testing.T) {
	env := setupTestRouter(t)
	env.repo.SaveFunc = func(context.Context, *domain.Job) error {
		return domain.ErrStoreUnavailable
	}

	w := env.do(http.MethodPost, "/api/v1/bulk", map[string]any{"items": []string{"a@example.com"}}, nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", w.Code)
	}
	if got := decodeError(t, w); got != domain.ErrStoreUnavailable.Error() {
		t.Errorf("unexpected error message %q", got)
	}
}

func TestStatusHandler_TokenAccess(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@example.com")
	env.repo.Put(job)

	w := env.do(http.MethodGet, "/api/v1/bulk/"+job.ID.String()+"?token=secret", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var view domain.JobStatusView
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.ProgressPercent != 100 || view.Status != domain.StatusCompleted {
		t.Errorf("unexpected view %+v", view)
	}

	w = env.do(http.MethodGet, "/api/v1/bulk/"+job.ID.String(), nil, map[string]string{AccessTokenHeader: "secret"})
	if w.Code != http.StatusOK {
		t.Errorf("header token: expected status 200, got %d", w.Code)
	}
}

func TestStatusHandler_NotFoundIsUniform(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@example.com")
	env.repo.Put(job)

	paths := []string{
		"/api/v1/bulk/" + job.ID.String(),
		"/api/v1/bulk/" + job.ID.String() + "?token=wrong",
		"/api/v1/bulk/" + uuid.Must(uuid.NewV7()).String() + "?token=secret",
		"/api/v1/bulk/not-a-uuid",
	}

	var bodies []string
	for _, p := range paths {
		w := env.do(http.MethodGet, p, nil, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", p, w.Code)
		}
		bodies = append(bodies, w.Body.String())
	}
	for _, b := range bodies[1:] {
		if b != bodies[0] {
			t.Errorf("404 bodies differ: %q vs %q", b, bodies[0])
		}
	}
}

func TestResultsHandler(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@x.io", "b@x.io", "c@x.io")
	env.repo.Put(job)

	w := env.do(http.MethodGet, "/api/v1/bulk/"+job.ID.String()+"/results?token=secret&page=2&limit=2", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var view domain.JobResultsView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(view.Results) != 1 || view.Results[0].Email != "c@x.io" {
		t.Errorf("unexpected page contents %+v", view.Results)
	}
	want := domain.Pagination{Page: 2, Limit: 2, Total: 3, Pages: 2}
	if view.Pagination != want {
		t.Errorf("expected pagination %+v, got %+v", want, view.Pagination)
	}
}

func TestResultsHandler_NotReady(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@x.io")
	job.Status = domain.StatusProcessing
	job.Results = nil
	job.Stats = nil
	job.CompletedAt = nil
	env.repo.Put(job)

	w := env.do(http.MethodGet, "/api/v1/bulk/"+job.ID.String()+"/results?token=secret", nil, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", w.Code)
	}
}

func TestVerifyHandler(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/v1/verify", map[string]any{"email": "jane@example.com"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp domain.VerifyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Success || resp.Result.Email != "jane@example.com" {
		t.Errorf("unexpected response %+v", resp)
	}

	w = env.do(http.MethodPost, "/api/v1/verify", map[string]any{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing email: expected status 400, got %d", w.Code)
	}
}

func TestVerifyHandler_RateLimited(t *testing.T) {
	env := setupTestRouter(t)
	body := map[string]any{"email": "jane@example.com"}
	ip := map[string]string{"X-Forwarded-For": "203.0.113.7"}

	for i := 0; i < 2; i++ {
		w := env.do(http.MethodPost, "/api/v1/verify", body, ip)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("expected X-RateLimit-Limit header, got %q", w.Header().Get("X-RateLimit-Limit"))
		}
	}

	w := env.do(http.MethodPost, "/api/v1/verify", body, ip)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}

	// A different client is unaffected.
	w = env.do(http.MethodPost, "/api/v1/verify", body, map[string]string{"X-Forwarded-For": "203.0.113.8"})
	if w.Code != http.StatusOK {
		t.Errorf("other client: expected status 200, got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/v1/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	logger := zap.NewNop()
	router := gin.New()
	router.GET("/health", NewHealthHandler([]HealthCheck{
		{Name: "store", Check: func(context.Context) error { return errors.New("down") }},
	}, logger).Health)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("expected degraded status, got %s", rec.Body.String())
	}
}

func TestStreamHandler_SendsTerminalStatus(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@x.io")
	env.repo.Put(job)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/bulk/" + job.ID.String() + "/stream?token=secret"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var view domain.JobStatusView
	if err := conn.ReadJSON(&view); err != nil {
		t.Fatalf("read: %v", err)
	}
	if view.Status != domain.StatusCompleted || view.ProgressPercent != 100 {
		t.Errorf("unexpected view %+v", view)
	}

	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close after terminal status, got %v", err)
	}
}

func TestStreamHandler_UnauthorizedBeforeUpgrade(t *testing.T) {
	env := setupTestRouter(t)
	job := completedJob("secret", "a@x.io")
	env.repo.Put(job)

	w := env.do(http.MethodGet, "/api/v1/bulk/"+job.ID.String()+"/stream?token=nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrJobNotFound, http.StatusNotFound},
		{&domain.ValidationError{Err: domain.ErrTooManyItems, Detail: "x"}, http.StatusBadRequest},
		{domain.ErrNoItems, http.StatusBadRequest},
		{domain.ErrResultsNotReady, http.StatusConflict},
		{&domain.QuotaError{Required: 5, Remaining: 1}, http.StatusPaymentRequired},
		{domain.ErrDispatchFailed, http.StatusServiceUnavailable},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := classifyError(tt.err); got != tt.want {
			t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
