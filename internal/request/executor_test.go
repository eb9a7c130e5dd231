package request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/identity"
)

func testPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Multiplier: 2.0, MaxDelay: 10 * time.Second}
}

// newTestExecutor records backoff sleeps instead of performing them.
func newTestExecutor(pool *identity.Pool) (*Executor, *[]time.Duration) {
	e := New(pool, DefaultClassifier(), 0, 0)
	sleeps := &[]time.Duration{}
	var mu sync.Mutex
	e.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*sleeps = append(*sleeps, d)
		mu.Unlock()
		return nil
	}
	return e, sleeps
}

func envelopeHandler(code int64, message string, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := json.Marshal(data)
		json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message, "data": json.RawMessage(raw)})
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(envelopeHandler(0, "ok", map[string]string{"hello": "world"}))
	defer srv.Close()

	e, sleeps := newTestExecutor(identity.NewPool(nil))
	resp, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no backoff sleeps, got %v", *sleeps)
	}
}

func TestDo_RiskControlExhaustsWithIncreasingDelays(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		// Risk-control interstitials are HTML, not the JSON envelope.
		w.WriteHeader(412)
		fmt.Fprint(w, "<html>blocked</html>")
	}))
	defer srv.Close()

	e, sleeps := newTestExecutor(identity.NewPool([]string{"ua-a", "ua-b", "ua-c"}))
	_, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())

	re, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if re.Kind != KindRiskControl {
		t.Errorf("kind = %s, want risk_control", re.Kind)
	}
	if !re.Exhausted {
		t.Error("expected Exhausted to be set")
	}
	if re.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", re.Attempts)
	}
	if len(agents) != 3 {
		t.Fatalf("transport attempts = %d, want exactly 3", len(agents))
	}
	for i := 1; i < len(agents); i++ {
		if agents[i] == agents[i-1] {
			t.Errorf("attempt %d reused identity %q", i+1, agents[i])
		}
	}

	// Two backoffs between three attempts: ~100ms then ~200ms, ±25% jitter.
	if len(*sleeps) != 2 {
		t.Fatalf("backoff sleeps = %d, want 2", len(*sleeps))
	}
	if (*sleeps)[1] <= (*sleeps)[0] {
		t.Errorf("delays not increasing: %v", *sleeps)
	}
	if (*sleeps)[0] < 75*time.Millisecond || (*sleeps)[0] > 125*time.Millisecond {
		t.Errorf("first delay %v outside ~100ms ±25%%", (*sleeps)[0])
	}
	if (*sleeps)[1] < 150*time.Millisecond || (*sleeps)[1] > 250*time.Millisecond {
		t.Errorf("second delay %v outside ~200ms ±25%%", (*sleeps)[1])
	}
}

func TestDo_RiskControlBusinessCode(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		envelopeHandler(-412, "risk control", nil)(w, r)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(identity.NewPool(nil))
	_, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())
	if !IsKind(err, KindRiskControl) {
		t.Fatalf("expected risk_control, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_AuthRejectedNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		envelopeHandler(-101, "account not logged in", nil)(w, r)
	}))
	defer srv.Close()

	e, sleeps := newTestExecutor(identity.NewPool(nil))
	_, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())

	re, ok := As(err)
	if !ok || re.Kind != KindAuthRejected {
		t.Fatalf("expected auth_rejected, got %v", err)
	}
	if re.Exhausted {
		t.Error("fatal failures must not be marked exhausted")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", *sleeps)
	}
}

func TestDo_TransientThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(502)
			return
		}
		envelopeHandler(0, "ok", nil)(w, r)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(identity.NewPool(nil))
	resp, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 0 || calls != 2 {
		t.Errorf("code=%d calls=%d, want 0 and 2", resp.Code, calls)
	}
}

func TestDo_UnexpectedBusinessCodeIsFatal(t *testing.T) {
	srv := httptest.NewServer(envelopeHandler(60004, "room not live", nil))
	defer srv.Close()

	e, _ := newTestExecutor(identity.NewPool(nil))
	_, err := e.Do(context.Background(), Spec{URL: srv.URL}, nil, testPolicy())

	re, ok := As(err)
	if !ok || re.Kind != KindRemoteBusiness {
		t.Fatalf("expected remote_business, got %v", err)
	}
	if re.Message != "room not live" {
		t.Errorf("message = %q, want remote-supplied message", re.Message)
	}
}

func TestDo_AllowedCodePassesThrough(t *testing.T) {
	srv := httptest.NewServer(envelopeHandler(86039, "not confirmed", nil))
	defer srv.Close()

	e, _ := newTestExecutor(identity.NewPool(nil))
	resp, err := e.Do(context.Background(), Spec{URL: srv.URL, AllowCodes: []int64{86039}}, nil, testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Code != 86039 {
		t.Errorf("code = %d, want 86039", resp.Code)
	}
}

func TestDo_AttachesCredentialCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		envelopeHandler(0, "ok", nil)(w, r)
	}))
	defer srv.Close()

	cred := &credential.Credential{
		Cookies:      map[string]string{"SESSDATA": "abc"},
		AccessToken:  "t",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		AccountID:    "1",
	}
	e, _ := newTestExecutor(identity.NewPool(nil))
	if _, err := e.Do(context.Background(), Spec{URL: srv.URL}, cred, testPolicy()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCookie != "SESSDATA=abc" {
		t.Errorf("cookie header = %q", gotCookie)
	}
}

func TestDo_SendsForm(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotContentType = r.Header.Get("Content-Type")
		envelopeHandler(0, "ok", nil)(w, r)
	}))
	defer srv.Close()

	e, _ := newTestExecutor(identity.NewPool(nil))
	_, err := e.Do(context.Background(), Spec{
		Method: "POST",
		URL:    srv.URL,
		Form:   url.Values{"room_id": {"42"}},
	}, nil, testPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotBody != "room_id=42" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(412)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	e := New(identity.NewPool(nil), DefaultClassifier(), 0, 0)
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := e.Do(ctx, Spec{URL: srv.URL}, nil, testPolicy())
	re, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if re.Exhausted {
		t.Error("abandoned call must not report an exhausted budget")
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	pol := Policy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, Multiplier: 2.0, MaxDelay: 200 * time.Millisecond}
	d := backoff(pol, 10)
	if d < 150*time.Millisecond || d > 250*time.Millisecond {
		t.Errorf("expected cap at ~200ms ±25%%, got %v", d)
	}
}
