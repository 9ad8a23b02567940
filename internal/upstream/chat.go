package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orneryd/yggdrasil/internal/yerrors"
)

// HandshakeTimeout is the deadline for any single upstream round trip
// (chat completion or TTS synthesis).
const HandshakeTimeout = 5 * time.Second

// HTTPChatClient is an OpenAI-compatible HTTP client for the chat
// collaborator.
type HTTPChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewHTTPChatClient constructs a client bound to an upstream base URL.
func NewHTTPChatClient(baseURL, apiKey, model string) *HTTPChatClient {
	return &HTTPChatClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		client:  &http.Client{Timeout: HandshakeTimeout},
	}
}

// Complete posts a chat completion request and decodes the response.
func (c *HTTPChatClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	if req.Model == "" {
		req.Model = c.Model
	}

	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("upstream: encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("upstream: building chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("%w: %v", yerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return ChatResponse{}, fmt.Errorf("%w: chat upstream returned %d: %s", yerrors.ErrUpstream, resp.StatusCode, string(data))
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResponse{}, fmt.Errorf("%w: decoding chat response: %v", yerrors.ErrUpstream, err)
	}
	return out, nil
}

var _ ChatClient = (*HTTPChatClient)(nil)
