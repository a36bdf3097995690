// ABOUTME: HTTP client implementation of the Interpreter interface
// ABOUTME: Posts command text to the orchestrator service and decodes its result

package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPInterpreter calls an orchestrator service over HTTP. The service
// receives {"command": <text>} and answers with a Result document.
type HTTPInterpreter struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPInterpreter creates an interpreter client for the given endpoint.
// Pass nil logger for default.
func NewHTTPInterpreter(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPInterpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPInterpreter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With("component", "intent"),
	}
}

// ProcessText sends the command text to the orchestrator and returns its result.
func (i *HTTPInterpreter) ProcessText(ctx context.Context, command string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling interpreter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("interpreter returned %d: %s", resp.StatusCode, data)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}

	i.logger.Debug("command processed", "status", result.Status)
	return &result, nil
}
