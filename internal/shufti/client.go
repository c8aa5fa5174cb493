// Package shufti talks to the Shufti Pro verification API and parses the
// payloads it sends back.
package shufti

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Provider is the remote-provider port consumed by the KYC service.
// Implementations report provider-side failures through the Success flag of
// the result, not through the error return; a non-nil error means the call
// could not be attempted at all.
type Provider interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*CreateSessionResult, error)
	GetStatus(ctx context.Context, reference string) (*StatusResult, error)
}

type CreateSessionParams struct {
	Reference   string
	Email       string
	Language    string
	Country     string
	CallbackURL string
	RedirectURL string
	TTLSeconds  int
}

type CreateSessionResult struct {
	Success         bool
	VerificationURL string
	RedirectURL     string
	Message         string
	Raw             json.RawMessage
}

type StatusResult struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"status_code"`
	Raw        json.RawMessage `json:"response"`
}

// Client implements Provider over HTTP with basic auth.
type Client struct {
	baseURL    string
	clientID   string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, clientID, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		clientID:   clientID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type documentService struct {
	SupportedTypes    []string `json:"supported_types"`
	FetchEnhancedData string   `json:"fetch_enhanced_data"`
}

type faceService struct {
	Proof          string `json:"proof"`
	VerifyDocument string `json:"verify_document"`
}

type createSessionRequest struct {
	Reference   string          `json:"reference"`
	Email       string          `json:"email,omitempty"`
	Country     string          `json:"country,omitempty"`
	Language    string          `json:"language"`
	CallbackURL string          `json:"callback_url"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Document    documentService `json:"document"`
	Face        faceService     `json:"face"`
	AllowRetry  string          `json:"allow_retry"`
	TTL         int             `json:"ttl"`
	ShowResults string          `json:"show_results"`
}

type apiResponse struct {
	Event           string `json:"event"`
	VerificationURL string `json:"verification_url"`
	RedirectURL     string `json:"redirect_url"`
	Message         string `json:"message"`
	Error           struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession requests a new verification session with document + face
// (biometric) checks. The request shape follows the account configuration
// agreed with the provider, so the service blocks stay fixed here.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (*CreateSessionResult, error) {
	payload := createSessionRequest{
		Reference:   params.Reference,
		Email:       params.Email,
		Country:     params.Country,
		Language:    params.Language,
		CallbackURL: params.CallbackURL,
		RedirectURL: params.RedirectURL,
		Document: documentService{
			SupportedTypes:    []string{"id_card", "passport", "driving_license"},
			FetchEnhancedData: "1",
		},
		Face: faceService{
			Proof:          "video",
			VerifyDocument: "1",
		},
		AllowRetry:  "0",
		TTL:         params.TTLSeconds,
		ShowResults: "1",
	}

	statusCode, body, err := c.post(ctx, "/", payload)
	if err != nil {
		// Provider unreachable; surfaced as an unsuccessful result so the
		// caller sees one failure shape for transport and API errors.
		return &CreateSessionResult{Success: false, Message: err.Error()}, nil
	}

	var parsed apiResponse
	_ = json.Unmarshal(body, &parsed)

	result := &CreateSessionResult{
		Success:         statusCode == http.StatusOK,
		VerificationURL: parsed.VerificationURL,
		RedirectURL:     parsed.RedirectURL,
		Raw:             body,
	}
	if !result.Success {
		result.Message = errorMessage(parsed, body)
	}
	return result, nil
}

// GetStatus asks the provider for the current state of a reference.
func (c *Client) GetStatus(ctx context.Context, reference string) (*StatusResult, error) {
	statusCode, body, err := c.post(ctx, "/status", map[string]string{"reference": reference})
	if err != nil {
		raw, _ := json.Marshal(map[string]string{"message": err.Error()})
		return &StatusResult{Success: false, StatusCode: http.StatusInternalServerError, Raw: raw}, nil
	}

	return &StatusResult{
		Success:    statusCode == http.StatusOK,
		StatusCode: statusCode,
		Raw:        body,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("shufti: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("shufti: build request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("shufti: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("shufti: read response: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("shufti API call")

	return resp.StatusCode, respBody, nil
}

func errorMessage(parsed apiResponse, raw []byte) string {
	if parsed.Message != "" {
		return parsed.Message
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(raw)
}
