package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
)

// IdentityError is a rejection from the identity provider (eg
// "EMAIL_EXISTS", "INVALID_PASSWORD"). The message is surfaced to the user
// as-is.
type IdentityError struct {
	Message string
}

func (e *IdentityError) Error() string {
	return e.Message
}

// IdentityProvider is the third-party service that owns accounts and
// passwords. Tokens are opaque to us.
type IdentityProvider interface {
	SignUp(email, password string) (token string, err error)
	SignIn(email, password string) (token string, err error)
	SendPasswordReset(email string) error
}

const DefaultIdentityBaseURL = "https://identitytoolkit.googleapis.com/v1"

// GoogleIdentityClient talks to the Google Identity Toolkit REST API
// (the API behind Firebase email/password authentication).
type GoogleIdentityClient struct {
	log     logs.Log
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogleIdentityClient(log logs.Log, apiKey, baseURL string) *GoogleIdentityClient {
	if baseURL == "" {
		baseURL = DefaultIdentityBaseURL
	}
	return &GoogleIdentityClient{
		log:     log,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *GoogleIdentityClient) SignUp(email, password string) (string, error) {
	return c.credentialCall("accounts:signUp", email, password)
}

func (c *GoogleIdentityClient) SignIn(email, password string) (string, error) {
	return c.credentialCall("accounts:signInWithPassword", email, password)
}

func (c *GoogleIdentityClient) SendPasswordReset(email string) error {
	_, err := c.post("accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	})
	return err
}

func (c *GoogleIdentityClient) credentialCall(operation, email, password string) (string, error) {
	body, err := c.post(operation, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return "", err
	}
	resp := struct {
		IDToken string `json:"idToken"`
	}{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.IDToken == "" {
		return "", fmt.Errorf("Identity provider returned no token for %v", operation)
	}
	return resp.IDToken, nil
}

func (c *GoogleIdentityClient) post(operation string, payload map[string]any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%v/%v?key=%v", c.baseURL, operation, c.apiKey)
	resp, err := c.client.Post(url, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		c.log.Errorf("Identity provider %v failed: %v", operation, www.FailedRequestSummary(nil, err))
		return nil, err
	}
	defer resp.Body.Close()
	buf := bytes.Buffer{}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	if resp.StatusCode != http.StatusOK {
		msg := parseProviderError(body)
		c.log.Infof("Identity provider %v rejected: %v", operation, msg)
		return nil, &IdentityError{Message: msg}
	}
	return body, nil
}

func parseProviderError(body []byte) string {
	parsed := struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}{}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "An unknown error occurred."
}
