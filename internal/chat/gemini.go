package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "gemini-3-flash-preview"
)

// GeminiClient talks to the native generateContent endpoint.
type GeminiClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewGemini(baseURL, model string, timeout time.Duration) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(timeout),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// geminiKey is read on every call so a key exported after start-up is
// picked up.
func geminiKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("API_KEY")
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	key := geminiKey()
	if key == "" {
		return "", &Error{Kind: MissingCredential, Provider: ProviderGemini, Err: errors.New("GEMINI_API_KEY is not set")}
	}

	var body geminiRequest
	body.GenerationConfig.Temperature = req.Temperature
	if req.System != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Text}}})
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &Error{Kind: Network, Provider: ProviderGemini, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: Network, Provider: ProviderGemini, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(ProviderGemini, resp.StatusCode, data)
	}

	var genResp geminiResponse
	if err := json.Unmarshal(data, &genResp); err != nil {
		return "", &Error{Kind: Malformed, Provider: ProviderGemini, Err: fmt.Errorf("decoding response: %w", err)}
	}
	// a blocked prompt comes back with no candidates, which reads as a blank reply
	if len(genResp.Candidates) == 0 {
		return "", nil
	}

	var out strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}
