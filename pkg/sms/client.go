// Package sms provides a client for sending text messages through the Twilio
// Messages REST API.
package sms

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const messagesEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"

// Client represents a Twilio API client used to send SMS notifications.
type Client struct {
	accountSID string
	authToken  string
	from       string       // sender phone number in E.164 format
	client     *http.Client // HTTP client used to make requests
}

// NewClient creates a new SMS client with the given Twilio credentials.
func NewClient(accountSID, authToken, from string) *Client {
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send delivers one text message to the given phone number.
//
// It posts a form to the Twilio Messages endpoint and returns an error if the
// request fails or the API responds with a non-2xx status.
func (c *Client) Send(to, body string) error {
	endpoint := fmt.Sprintf(messagesEndpoint, c.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio API error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	return nil
}
