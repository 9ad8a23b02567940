package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/orneryd/yggdrasil/internal/yerrors"
)

// HTTPSpeechClient synthesizes speech audio from text via an upstream
// text-to-speech HTTP API.
type HTTPSpeechClient struct {
	BaseURL string
	APIKey  string
	Voice   string
	client  *http.Client
}

// NewHTTPSpeechClient constructs a client bound to an upstream base URL.
func NewHTTPSpeechClient(baseURL, apiKey, voice string) *HTTPSpeechClient {
	return &HTTPSpeechClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Voice:   voice,
		client:  &http.Client{Timeout: HandshakeTimeout},
	}
}

type speechRequest struct {
	Input string `json:"input"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize requests audio for text and returns the raw audio bytes.
func (c *HTTPSpeechClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()

	body, err := json.Marshal(speechRequest{Input: text, Voice: c.Voice})
	if err != nil {
		return nil, fmt.Errorf("upstream: encoding speech request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream: building speech request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", yerrors.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: speech upstream returned %d: %s", yerrors.ErrUpstream, resp.StatusCode, string(data))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading speech audio: %v", yerrors.ErrUpstream, err)
	}
	return audio, nil
}

var _ SpeechClient = (*HTTPSpeechClient)(nil)
