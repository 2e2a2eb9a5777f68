package invoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/resilient-ai-invoker/internal/jsonx"
)

const (
	// defaultTemperature is the fixed sampling temperature for analysis
	// requests.
	defaultTemperature = 0.7

	// failureHistorySize bounds the per-model recent-failure ring.
	failureHistorySize = 32

	// maxFailuresPerModel bounds the failure messages kept for one model.
	maxFailuresPerModel = 8
)

// Invoker issues chat-completion requests with retry, backoff, and ordered
// model fallback. Multiple calls may be in flight concurrently; they share
// the lazily constructed client handle and manage their backoff waits
// independently.
type Invoker struct {
	clients *ClientManager
	load    func() *Config
	logger  *zap.Logger

	policyMu sync.RWMutex
	policy   RetryPolicy

	// failures maps model name to its most recent failure messages, used
	// for the health summary logged on exhaustion.
	failures *lru.Cache[string, []string]
}

// New creates an Invoker that reads configuration through load (nil falls
// back to ConfigFromEnv) and logs through logger (nil falls back to a nop
// logger).
func New(load func() *Config, logger *zap.Logger) *Invoker {
	if load == nil {
		load = ConfigFromEnv
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	history, _ := lru.New[string, []string](failureHistorySize)
	return &Invoker{
		clients:  NewClientManager(load),
		load:     load,
		logger:   logger,
		policy:   DefaultRetryPolicy(),
		failures: history,
	}
}

// Policy returns the current retry policy.
func (inv *Invoker) Policy() RetryPolicy {
	inv.policyMu.RLock()
	defer inv.policyMu.RUnlock()
	return inv.policy
}

// UpdatePolicy merges a partial override over the current retry policy.
func (inv *Invoker) UpdatePolicy(patch RetryPolicyPatch) {
	inv.policyMu.Lock()
	inv.policy = inv.policy.Merge(patch)
	inv.policyMu.Unlock()
}

// ResetClient clears the cached client handle so the next call re-reads
// configuration.
func (inv *Invoker) ResetClient() {
	inv.clients.Reset()
}

// Analyze sends the prompt to the first available model and validates the
// JSON response against expectedFields. Recoverable failures are retried
// with backoff per model, then the next model is tried from attempt zero.
// It returns the validated (possibly mutated) object, or a terminal
// configuration error, or an aggregate exhaustion error naming every
// attempted model.
func (inv *Invoker) Analyze(ctx context.Context, prompt string, expectedFields []string) (map[string]interface{}, error) {
	id := uuid.NewString()
	policy := inv.Policy()

	cfg := inv.load()
	models, err := cfg.ResolveModels()
	if err != nil {
		return nil, err
	}

	var lastErr error
	tried := make([]string, 0, len(models))

	for _, model := range models {
		tried = append(tried, model)

		for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
			data, err := inv.attempt(ctx, id, model, attempt, prompt, expectedFields)
			if err == nil {
				inv.logger.Debug("analysis succeeded",
					zap.String("invocation", id),
					zap.String("model", model),
					zap.Int("attempt", attempt))
				return data, nil
			}

			if IsTerminal(err) {
				inv.logger.Error("terminal failure, aborting all retries",
					zap.String("invocation", id),
					zap.String("model", model),
					zap.Error(err))
				return nil, err
			}

			lastErr = err
			inv.recordFailure(model, err)
			inv.logger.Warn("attempt failed",
				zap.String("invocation", id),
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(err))

			if attempt < policy.MaxRetries {
				if err := sleep(ctx, policy.Delay(attempt)); err != nil {
					return nil, newTransientError("invocation canceled during backoff", err)
				}
			}
		}
	}

	inv.logHealthSummary(id, tried)
	return nil, newExhaustionError(tried, policy.MaxRetries+1, lastErr)
}

// attempt performs one request/normalize/validate cycle against one model.
func (inv *Invoker) attempt(ctx context.Context, id, model string, attempt int, prompt string, expectedFields []string) (map[string]interface{}, error) {
	handle, err := inv.clients.Get()
	if err != nil {
		return nil, err
	}

	body, err := inv.postCompletion(ctx, handle, model, prompt)
	if err != nil {
		return nil, err
	}

	text, err := ExtractText(Classify(body))
	if err != nil {
		return nil, err
	}

	result := Validate(text, expectedFields)
	if !result.IsValid {
		return nil, newValidationError(result.Errors)
	}
	return result.Data, nil
}

// postCompletion sends one chat-completions request and returns the raw
// response body. An HTML body is classified by the caller; any other
// non-200 status is a transient failure.
func (inv *Invoker) postCompletion(ctx context.Context, handle *clientHandle, model, prompt string) ([]byte, error) {
	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": defaultTemperature,
	}
	if supportsJSONMode(model) {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	reqBody, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, newTransientError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL(handle.baseURL), bytes.NewReader(reqBody))
	if err != nil {
		return nil, newTransientError("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+handle.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := handle.http.Do(req)
	if err != nil {
		return nil, newTransientError("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransientError("failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		// A misconfigured proxy serves its web UI with a non-200 just as
		// readily as with a 200, so check for HTML before giving the retry
		// loop a chance.
		if isHTMLPage(string(respBody)) {
			_, extractErr := ExtractText(RawResponse{Kind: KindHTMLPage, Text: string(respBody)})
			return nil, extractErr
		}
		return nil, newTransientError(
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200)), nil)
	}
	return respBody, nil
}

// supportsJSONMode reports whether the model family accepts the JSON-object
// response format flag. Reasoning families reject it.
func supportsJSONMode(model string) bool {
	m := strings.ToLower(model)
	if strings.Contains(m, "deepseek-r") {
		return false
	}
	if strings.HasPrefix(m, "o1") {
		return false
	}
	return true
}

func completionsURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/chat/completions"
}

// sleep waits for the backoff delay without blocking unrelated concurrent
// invocations; the wait belongs to this call alone.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (inv *Invoker) recordFailure(model string, err error) {
	history, _ := inv.failures.Get(model)
	history = append(history, err.Error())
	if len(history) > maxFailuresPerModel {
		history = history[len(history)-maxFailuresPerModel:]
	}
	inv.failures.Add(model, history)
}

func (inv *Invoker) logHealthSummary(id string, models []string) {
	for _, model := range models {
		if history, ok := inv.failures.Get(model); ok {
			inv.logger.Warn("model health summary",
				zap.String("invocation", id),
				zap.String("model", model),
				zap.Int("recent_failures", len(history)),
				zap.String("last_failure", history[len(history)-1]))
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
