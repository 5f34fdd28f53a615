package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"crewlink/internal/apperrors"
	"crewlink/internal/models"
)

// HTTPClient calls the REST surface on behalf of one user.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient builds a client for baseURL (e.g. http://localhost:8083). A nil
// httpClient gets a 10s timeout default.
func NewHTTPClient(baseURL, token string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: httpClient}
}

// SendMessage posts a message.
func (c *HTTPClient) SendMessage(ctx context.Context, req SendRequest) (models.ChatMessage, error) {
	var resp struct {
		Message models.ChatMessage `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/chat/send", req, &resp); err != nil {
		return models.ChatMessage{}, err
	}
	return resp.Message, nil
}

// Conversation fetches the messages exchanged with otherUserID.
func (c *HTTPClient) Conversation(ctx context.Context, otherUserID string) ([]models.ChatMessage, error) {
	var resp struct {
		Messages []models.ChatMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/chat/messages/"+url.PathEscape(otherUserID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// UpdateStatus marks a received message delivered or read.
func (c *HTTPClient) UpdateStatus(ctx context.Context, messageID string, status models.MessageStatus) error {
	body := map[string]string{"message_id": messageID, "status": string(status)}
	return c.do(ctx, http.MethodPut, "/chat/message-status", body, nil)
}

// SendConnectionRequest asks receiverID to connect.
func (c *HTTPClient) SendConnectionRequest(ctx context.Context, receiverID string) (models.ConnectionRequest, error) {
	var resp struct {
		Request models.ConnectionRequest `json:"request"`
	}
	body := map[string]string{"receiver_id": receiverID}
	if err := c.do(ctx, http.MethodPost, "/connections/requests", body, &resp); err != nil {
		return models.ConnectionRequest{}, err
	}
	return resp.Request, nil
}

// Respond accepts or declines a request addressed to the caller.
func (c *HTTPClient) Respond(ctx context.Context, requestID string, action models.RespondAction) error {
	body := map[string]string{"action": string(action)}
	return c.do(ctx, http.MethodPut, "/connections/requests/"+url.PathEscape(requestID), body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// decodeError rebuilds the server's AppError so callers can use errors.Is on sentinels.
func decodeError(resp *http.Response) error {
	var body struct {
		Error string         `json:"error"`
		Code  apperrors.Code `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return apperrors.Internal(fmt.Sprintf("unexpected status %d", resp.StatusCode), err)
	}
	return apperrors.New(body.Code, body.Error)
}
