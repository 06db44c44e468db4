package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
)

const ollamaOp = "ollama_chat"

// OllamaProvider calls a local Ollama server's /api/chat without streaming.
// Failures use the same error kinds as the pantry backend client.
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Metrics metrics.Recorder
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
		Metrics: metrics.Nop{},
	}
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", &common.TransportError{Op: ollamaOp, Err: errors.New("http client is nil")}
	}
	rec := p.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	msgs := make([]ollamaMsg, len(messages))
	for i, m := range messages {
		msgs[i] = ollamaMsg{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(ollamaChatReq{Model: p.Model, Messages: msgs})
	if err != nil {
		return "", &common.TransportError{Op: ollamaOp, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &common.TransportError{Op: ollamaOp, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		rec.RecordRequest(ollamaOp, "transport", time.Since(start))
		return "", &common.TransportError{Op: ollamaOp, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		rec.RecordRequest(ollamaOp, "rejected", time.Since(start))
		return "", &common.RemoteRejection{Op: ollamaOp, Status: resp.StatusCode}
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		rec.RecordRequest(ollamaOp, "transport", time.Since(start))
		return "", &common.TransportError{Op: ollamaOp, Err: err}
	}
	if decoded.Error != "" {
		rec.RecordRequest(ollamaOp, "rejected", time.Since(start))
		return "", &common.TransportError{Op: ollamaOp, Err: errors.New(decoded.Error)}
	}
	rec.RecordRequest(ollamaOp, "ok", time.Since(start))
	return decoded.Message.Content, nil
}
