// Package whatsapp talks to the Meta Cloud API: outbound message delivery
// and the webhook payload shapes.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/finzap/finzap/internal/config"
)

const baseURL = "https://graph.facebook.com"

type Client struct {
	accessToken   string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	httpClient    *http.Client
}

func NewClient(accessToken, phoneNumberID, apiVersion string) *Client {
	return &Client{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		apiVersion:    apiVersion,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: config.SendTimeout},
	}
}

// WithBaseURL points the client at a different endpoint. Used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

type sendRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             sendText     `json:"text"`
	Context          *sendContext `json:"context,omitempty"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendContext struct {
	MessageID string `json:"message_id"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers one text message, optionally threaded as a reply to
// replyToWAMID, and returns the provider-assigned message id.
func (c *Client) SendText(ctx context.Context, to, body, replyToWAMID string) (string, error) {
	reqBody := sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	}
	if replyToWAMID != "" {
		reqBody.Context = &sendContext{MessageID: replyToWAMID}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read send response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("send message: status %d: %s", resp.StatusCode, respBody)
	}

	var sr sendResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return "", fmt.Errorf("parse send response: %w", err)
	}
	if len(sr.Messages) == 0 || sr.Messages[0].ID == "" {
		return "", fmt.Errorf("send response has no message id")
	}
	return sr.Messages[0].ID, nil
}
