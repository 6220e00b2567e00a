package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-inbox/internal/config"
)

// Client talks to the WhatsApp Cloud API on behalf of one tenant at a time;
// credentials travel with each call.
type Client struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	timeout := cfg.HTTPClientTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    cfg.GraphBaseURL,
		APIVersion: cfg.GraphAPIVersion,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Credentials identify the sending business number.
type Credentials struct {
	AccessToken   string
	PhoneNumberID string
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type,omitempty"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             *TextObj `json:"text,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorEnvelope struct {
	Error *struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		UserTitle string `json:"error_user_title"`
		UserMsg   string `json:"error_user_msg"`
	} `json:"error"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return respBody, parseAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		apiErr.Message = string(body)
		return apiErr
	}
	apiErr.Code = env.Error.Code
	apiErr.Message = env.Error.Message
	apiErr.UserTitle = env.Error.UserTitle
	return apiErr
}

// --- Messaging Methods ---

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, creds Credentials, to, body string) (string, error) {
	if creds.AccessToken == "" || creds.PhoneNumberID == "" {
		return "", errors.New("whatsapp credentials are incomplete")
	}

	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextObj{Body: body},
	}
	url := fmt.Sprintf("%s/%s/%s/messages", c.BaseURL, c.APIVersion, creds.PhoneNumberID)

	raw, err := c.sendRequest(ctx, http.MethodPost, url, creds.AccessToken, msg)
	if err != nil {
		return "", err
	}

	var resp SendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", errors.New("provider response carried no message id")
	}
	return resp.Messages[0].ID, nil
}
