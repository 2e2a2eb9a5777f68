package invoker

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resilient-ai-invoker/internal/jsonx"
)

// streamChunk is one decoded SSE event from a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// GenerateStream runs the same retry/fallback orchestration as Analyze but
// consumes incremental content fragments, invoking onFragment once per
// fragment as it arrives, in order. A full attempt that yields zero
// fragments is a recoverable failure and is retried per the policy. On
// terminal failure, onError is invoked exactly once with the aggregate
// error; it is never raised synchronously. Absence of a terminal call means
// the stream is still in progress, not that it succeeded.
func (inv *Invoker) GenerateStream(ctx context.Context, prompt string, onFragment func(string), onError func(error)) {
	id := uuid.NewString()
	policy := inv.Policy()

	cfg := inv.load()
	models, err := cfg.ResolveModels()
	if err != nil {
		onError(err)
		return
	}

	var lastErr error
	tried := make([]string, 0, len(models))

	for _, model := range models {
		tried = append(tried, model)

		for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
			err := inv.attemptStream(ctx, model, prompt, onFragment)
			if err == nil {
				inv.logger.Debug("stream completed",
					zap.String("invocation", id),
					zap.String("model", model),
					zap.Int("attempt", attempt))
				return
			}

			if IsTerminal(err) {
				inv.logger.Error("terminal stream failure, aborting all retries",
					zap.String("invocation", id),
					zap.String("model", model),
					zap.Error(err))
				onError(err)
				return
			}

			lastErr = err
			inv.recordFailure(model, err)
			inv.logger.Warn("stream attempt failed",
				zap.String("invocation", id),
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(err))

			if attempt < policy.MaxRetries {
				if err := sleep(ctx, policy.Delay(attempt)); err != nil {
					onError(newExhaustionError(tried, attempt+1, err))
					return
				}
			}
		}
	}

	inv.logHealthSummary(id, tried)
	onError(newExhaustionError(tried, policy.MaxRetries+1, lastErr))
}

// attemptStream performs one streaming request, forwarding each delta
// content fragment to onFragment. Only a counter is kept; fragments are not
// buffered.
func (inv *Invoker) attemptStream(ctx context.Context, model, prompt string, onFragment func(string)) error {
	handle, err := inv.clients.Get()
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": defaultTemperature,
		"stream":      true,
	}

	reqBody, err := jsonx.Marshal(payload)
	if err != nil {
		return newTransientError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL(handle.baseURL), bytes.NewReader(reqBody))
	if err != nil {
		return newTransientError("failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+handle.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := handle.http.Do(req)
	if err != nil {
		return newTransientError("stream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if isHTMLPage(string(body)) {
			_, extractErr := ExtractText(RawResponse{Kind: KindHTMLPage, Text: string(body)})
			return extractErr
		}
		return newTransientError(
			"stream API error (status "+resp.Status+"): "+truncate(string(body), 200), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fragments := 0
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := jsonx.UnmarshalFromString(data, &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			onFragment(content)
			fragments++
		}
	}
	if err := scanner.Err(); err != nil {
		return newTransientError("stream read failed", err)
	}

	if fragments == 0 {
		return newTransientError("no content received from stream", nil)
	}
	return nil
}
