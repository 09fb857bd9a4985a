package yandex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultIAMURL = "https://iam.api.cloud.yandex.net/iam/v1/tokens"

// IamClient exchanges an OAuth token for a short-lived IAM token and caches it.
type IamClient struct {
	httpc *http.Client
	url   string
	oauth func() string

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewIamClient(oauth func() string, httpc *http.Client) *IamClient {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &IamClient{httpc: httpc, url: defaultIAMURL, oauth: oauth}
}

// Token returns the cached token while it has more than a minute left.
func (c *IamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}

	b, _ := json.Marshal(map[string]string{"yandexPassportOauthToken": c.oauth()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &iamError{status: resp.StatusCode, body: string(body)}
	}

	var out struct {
		IamToken  string    `json:"iamToken"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	c.token = out.IamToken
	c.expiry = out.ExpiresAt
	if c.expiry.IsZero() {
		c.expiry = time.Now().Add(11 * time.Hour)
	}
	return c.token, nil
}

// Reset drops the cached token.
func (c *IamClient) Reset() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type iamError struct {
	status int
	body   string
}

func (e *iamError) Error() string { return fmt.Sprintf("iam %d: %s", e.status, e.body) }
