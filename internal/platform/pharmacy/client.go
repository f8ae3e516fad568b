// Package pharmacy talks to the external pharmacy service for medicine
// availability checks and prescription hand-off.
package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Medicine is the pharmacy's answer to an availability lookup.
type Medicine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Supplies bool   `json:"supplies"`
	ErrorMsg string `json:"errorMsg,omitempty"`
}

// Recipe is a prescription forwarded to the pharmacy after an examination.
type Recipe struct {
	DoctorName string `json:"doctorName"`
	Medicine   string `json:"medicine"`
	Therapy    string `json:"therapy"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// Client is a thin HTTP client for the pharmacy API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LookupMedicine asks the pharmacy whether it can supply the given
// quantity of a medicine.
func (c *Client) LookupMedicine(ctx context.Context, name string, quantity int) (*Medicine, error) {
	u := fmt.Sprintf("%s/api/medicine?name=%s&quantity=%s",
		c.baseURL, url.QueryEscape(name), strconv.Itoa(quantity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building medicine request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying pharmacy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn().Int("status", resp.StatusCode).Str("medicine", name).
			Msg("pharmacy medicine lookup failed")
		return nil, fmt.Errorf("pharmacy returned status %d: %s", resp.StatusCode, string(body))
	}

	var med Medicine
	if err := json.NewDecoder(resp.Body).Decode(&med); err != nil {
		return nil, fmt.Errorf("decoding pharmacy response: %w", err)
	}
	return &med, nil
}

// PostRecipe forwards a prescription to the pharmacy.
func (c *Client) PostRecipe(ctx context.Context, recipe Recipe) error {
	payload, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("marshaling recipe: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recipe", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building recipe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting recipe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn().Int("status", resp.StatusCode).Str("medicine", recipe.Medicine).
			Msg("pharmacy recipe hand-off failed")
		return fmt.Errorf("pharmacy returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
