package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Solver turns a CAPTCHA image into its text. Implementations may return
// wrong text; the session manager handles that with bounded retries.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// HTTPSolver calls an external OCR service over HTTP. The service takes
// a base64 image and answers with the recognized text.
type HTTPSolver struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPSolver builds a solver against the given OCR endpoint.
func NewHTTPSolver(url string) *HTTPSolver {
	return &HTTPSolver{URL: url, HTTPClient: &http.Client{}}
}

type ocrRequest struct {
	Image string `json:"image"`
}

type ocrResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Solve posts the image and returns the OCR text.
func (s *HTTPSolver) Solve(ctx context.Context, image []byte) (string, error) {
	reqBody, err := json.Marshal(ocrRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return "", fmt.Errorf("marshaling OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("creating OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, body)
	}

	var ocrResp ocrResponse
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return "", fmt.Errorf("parsing OCR response: %w", err)
	}
	if ocrResp.Error != "" {
		return "", fmt.Errorf("OCR service error: %s", ocrResp.Error)
	}

	text := strings.TrimSpace(ocrResp.Result)
	if text == "" {
		return "", fmt.Errorf("OCR service returned empty text")
	}
	return text, nil
}
