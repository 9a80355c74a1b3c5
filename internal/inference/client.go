package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the speech/AI inference service over HTTP.
type Client struct {
	baseURL string
	// Transcription runs whisper-class models; it gets a much longer
	// timeout than the analyze endpoint.
	transcribeClient *http.Client
	analyzeClient    *http.Client
}

// APIError represents an inference service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// TranscriptionResult is the service's transcription payload.
type TranscriptionResult struct {
	Text     string `json:"transcription"`
	Language string `json:"language,omitempty"`
}

// NewClient constructs an inference client.
func NewClient(baseURL string, transcribeTimeout, analyzeTimeout time.Duration) *Client {
	if transcribeTimeout <= 0 {
		transcribeTimeout = 300 * time.Second
	}
	if analyzeTimeout <= 0 {
		analyzeTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		transcribeClient: &http.Client{Timeout: transcribeTimeout},
		analyzeClient:    &http.Client{Timeout: analyzeTimeout},
	}
}

// TranscribeAudio uploads an audio file for transcription.
func (c *Client) TranscribeAudio(ctx context.Context, filename string, file io.Reader, language string) (TranscriptionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return TranscriptionResult{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return TranscriptionResult{}, err
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return TranscriptionResult{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return TranscriptionResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return TranscriptionResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result TranscriptionResult
	if err := c.do(c.transcribeClient, req, &result); err != nil {
		return TranscriptionResult{}, err
	}
	return result, nil
}

// TranscribeYouTube asks the service to fetch and transcribe a video.
func (c *Client) TranscribeYouTube(ctx context.Context, videoURL, language string) (TranscriptionResult, error) {
	form := url.Values{}
	form.Set("url", videoURL)
	if language != "" {
		form.Set("language", language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe/youtube", strings.NewReader(form.Encode()))
	if err != nil {
		return TranscriptionResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result TranscriptionResult
	if err := c.do(c.transcribeClient, req, &result); err != nil {
		return TranscriptionResult{}, err
	}
	return result, nil
}

// Analyze forwards a study-analysis request, passing the caller's bearer
// token through, and returns the service response verbatim.
func (c *Client) Analyze(ctx context.Context, bearerToken string, fields map[string]string) (json.RawMessage, error) {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ai/analyze", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	var raw json.RawMessage
	if err := c.do(c.analyzeClient, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) do(httpClient *http.Client, req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		message := fmt.Sprintf("inference service returned status %d", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return &APIError{Status: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode inference response: %w", err)
	}
	return nil
}
