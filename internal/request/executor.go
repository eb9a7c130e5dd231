// Package request implements the resilient request executor: every remote
// call goes through one place that owns identity rotation, risk-control
// classification, retry with exponential backoff, and outbound rate limiting.
package request

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/livectl/internal/credential"
	"github.com/nextlevelbuilder/livectl/internal/identity"
)

// Spec describes one remote call. The executor owns transport concerns; the
// caller owns endpoint, parameters, and interpretation of allowed codes.
type Spec struct {
	Method  string
	URL     string
	Query   url.Values
	Form    url.Values // non-nil means a form-encoded POST body
	Referer string
	// AllowCodes lists business codes the caller handles as data instead of
	// failure (e.g. "QR not confirmed yet" during login polling).
	AllowCodes []int64
}

// Policy controls the retry budget and backoff shape.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultPolicy returns the retry policy used unless config overrides it.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
	}
}

// Response is the decoded platform envelope of a successful call. Code may be
// non-zero only when the Spec allowed it.
type Response struct {
	StatusCode int
	Code       int64
	Message    string
	Data       json.RawMessage
}

// envelope is the platform's uniform JSON response wrapper.
type envelope struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// Executor sends classified, retried, identity-rotated requests.
type Executor struct {
	httpc   *http.Client
	pool    *identity.Pool
	limiter *rate.Limiter
	sleep   func(context.Context, time.Duration) error

	mu         sync.RWMutex
	classifier Classifier
}

// New creates an executor. rpm limits outbound requests per minute across all
// callers (0 disables the limit), burst is the token-bucket burst size.
func New(pool *identity.Pool, classifier Classifier, rpm, burst int) *Executor {
	if burst <= 0 {
		burst = 5
	}
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Limit(float64(rpm) / 60.0)
	}
	return &Executor{
		httpc:      &http.Client{Timeout: 15 * time.Second},
		pool:       pool,
		classifier: classifier,
		limiter:    rate.NewLimiter(limit, burst),
		sleep:      sleepCtx,
	}
}

// SetClassifier swaps the classification tables (config hot reload).
func (e *Executor) SetClassifier(c Classifier) {
	e.mu.Lock()
	e.classifier = c
	e.mu.Unlock()
}

func (e *Executor) currentClassifier() Classifier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classifier
}

// Do executes the request, retrying per policy. The credential's cookies are
// attached when cred is non-nil. State transitions stay with the caller: Do
// never mutates the credential.
func (e *Executor) Do(ctx context.Context, spec Spec, cred *credential.Credential, pol Policy) (*Response, error) {
	if pol.MaxAttempts <= 0 {
		pol.MaxAttempts = 1
	}
	allowed := int64Set(spec.AllowCodes)
	classifier := e.currentClassifier()
	reqID := uuid.NewString()[:8]

	var lastErr *Error
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetworkTransient, Message: err.Error(), Attempts: attempt, cause: err}
		}

		resp, reqErr := e.attempt(ctx, spec, cred)
		if reqErr == nil {
			oc, kind := classifier.Classify(resp.StatusCode, resp.Code, allowed)
			switch oc {
			case outcomeSuccess:
				return resp, nil
			case outcomeFatal:
				msg := resp.Message
				if msg == "" {
					msg = http.StatusText(resp.StatusCode)
				}
				return nil, &Error{Kind: kind, HTTPStatus: resp.StatusCode, Code: resp.Code, Message: msg, Attempts: attempt}
			case outcomeRetry:
				lastErr = &Error{Kind: kind, HTTPStatus: resp.StatusCode, Code: resp.Code, Message: resp.Message, Attempts: attempt}
			}
		} else {
			if ctx.Err() != nil {
				return nil, &Error{Kind: KindNetworkTransient, Message: ctx.Err().Error(), Attempts: attempt, cause: ctx.Err()}
			}
			if fatal, ok := As(reqErr); ok && !fatal.Kind.Retryable() {
				fatal.Attempts = attempt
				return nil, fatal
			}
			lastErr = &Error{Kind: KindNetworkTransient, Message: reqErr.Error(), Attempts: attempt, cause: reqErr}
		}

		slog.Warn("request.retry",
			"id", reqID,
			"url", spec.URL,
			"attempt", attempt,
			"of", pol.MaxAttempts,
			"kind", lastErr.Kind.String(),
			"code", lastErr.Code,
		)

		if attempt < pol.MaxAttempts {
			if err := e.sleep(ctx, backoff(pol, attempt)); err != nil {
				// Caller abandoned the call mid-backoff.
				return nil, &Error{Kind: KindNetworkTransient, Message: err.Error(), Attempts: attempt, cause: err}
			}
		}
	}

	lastErr.Exhausted = true
	lastErr.Attempts = pol.MaxAttempts
	return nil, lastErr
}

// attempt performs one transport round trip and decodes the envelope.
func (e *Executor) attempt(ctx context.Context, spec Spec, cred *credential.Credential) (*Response, error) {
	var body io.Reader
	if spec.Form != nil {
		body = strings.NewReader(spec.Form.Encode())
	}

	method := spec.Method
	if method == "" {
		method = http.MethodGet
		if spec.Form != nil {
			method = http.MethodPost
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, spec.URL, body)
	if err != nil {
		return nil, Validation("build request: %v", err)
	}
	if len(spec.Query) > 0 {
		req.URL.RawQuery = spec.Query.Encode()
	}
	if spec.Form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if spec.Referer != "" {
		req.Header.Set("Referer", spec.Referer)
	}
	req.Header.Set("User-Agent", e.pool.Next())
	if cred != nil {
		if header := cred.CookieHeader(); header != "" {
			req.Header.Set("Cookie", header)
		}
	}

	httpResp, err := e.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Risk-control interstitials are HTML; let the status classify those.
		if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
			return nil, NewError(KindValidation, "unexpected response schema")
		}
		return &Response{StatusCode: httpResp.StatusCode}, nil
	}

	msg := env.Message
	if msg == "" {
		msg = env.Msg
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Code:       env.Code,
		Message:    msg,
		Data:       env.Data,
	}, nil
}

// backoff computes base × multiplier^(attempt−1), capped, with ±25% jitter.
func backoff(pol Policy, attempt int) time.Duration {
	mult := pol.Multiplier
	if mult < 1 {
		mult = 2.0
	}
	delay := time.Duration(float64(pol.BaseDelay) * math.Pow(mult, float64(attempt-1)))
	if pol.MaxDelay > 0 && delay > pol.MaxDelay {
		delay = pol.MaxDelay
	}

	quarter := delay / 4
	if quarter > 0 {
		jitter := time.Duration(rand.Int64N(int64(quarter*2))) - quarter
		delay += jitter
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
