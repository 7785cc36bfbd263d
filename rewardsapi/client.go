// Package rewardsapi talks to the rewards API that stores discounts encrypted at rest.
package rewardsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5268/api/rewards"
	DefaultTimeout = 10 * time.Second

	_MAX_ERROR_BODY = 256
)

// Client issues create and decrypt calls and times each of them. It holds no per-call state and
// is safe for concurrent use.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport. Its own Timeout is left alone; every call is
// still bounded by the client's per-call timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     120 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the collection endpoint the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Created is the service's answer to a create call.
type Created struct {
	ID         int64
	Ciphertext string
	Latency    time.Duration
}

// Decrypted is the service's answer to a decrypt call. Value keeps the decimal text exactly as
// the service sent it.
type Decrypted struct {
	Value   string
	Latency time.Duration
}

type createRequest struct {
	Name  string      `json:"name"`
	Value json.Number `json:"value"`
}

type createResponse struct {
	ID             int64  `json:"id"`
	EncryptedValue string `json:"encryptedValue"`
}

type decryptResponse struct {
	Value decimalText `json:"value"`
}

// Create stores value under label and returns the record id and ciphertext.
func (c *Client) Create(ctx context.Context, label string, value string) (Created, error) {
	body, err := json.Marshal(createRequest{Name: label, Value: json.Number(value)})
	if err != nil {
		return Created{}, fmt.Errorf("failed to encode create request: %w", err)
	}

	raw, latency, err := c.do(ctx, "create", http.MethodPost, c.baseURL, body)
	if err != nil {
		return Created{}, err
	}

	var cr createResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Created{}, &Error{Op: "create", Endpoint: c.baseURL, Kind: KindResponse, Err: err}
	}
	if cr.EncryptedValue == "" {
		return Created{}, &Error{Op: "create", Endpoint: c.baseURL, Kind: KindResponse, Err: errors.New("response carries no encryptedValue")}
	}

	return Created{ID: cr.ID, Ciphertext: cr.EncryptedValue, Latency: latency}, nil
}

// Decrypt asks the service for the plaintext value of record id.
func (c *Client) Decrypt(ctx context.Context, id int64) (Decrypted, error) {
	endpoint := c.baseURL + "/decrypt/" + strconv.FormatInt(id, 10)

	raw, latency, err := c.do(ctx, "decrypt", http.MethodGet, endpoint, nil)
	if err != nil {
		return Decrypted{}, err
	}

	var dr decryptResponse
	if err := json.Unmarshal(raw, &dr); err != nil {
		return Decrypted{}, &Error{Op: "decrypt", Endpoint: endpoint, Kind: KindResponse, Err: err}
	}
	if dr.Value == "" {
		return Decrypted{}, &Error{Op: "decrypt", Endpoint: endpoint, Kind: KindResponse, Err: errors.New("response carries no value")}
	}

	return Decrypted{Value: string(dr.Value), Latency: latency}, nil
}

// do performs one bounded exchange. The returned latency spans issuing the request until the
// response body has been read in full.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) ([]byte, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, &Error{Op: op, Endpoint: endpoint, Kind: KindTransport, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, time.Since(start), &Error{Op: op, Endpoint: endpoint, Kind: classify(err), Err: err}
	}
	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	resp.Body.Close()
	if err != nil {
		return nil, latency, &Error{Op: op, Endpoint: endpoint, Kind: classify(err), Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, latency, &Error{
			Op:       op,
			Endpoint: endpoint,
			Kind:     KindStatus,
			Status:   resp.StatusCode,
			Body:     snippet(raw),
		}
	}

	return raw, latency, nil
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > _MAX_ERROR_BODY {
		s = s[:_MAX_ERROR_BODY] + "..."
	}
	return s
}

// decimalText accepts a JSON number or a JSON string holding a number and keeps its text.
type decimalText string

func (d *decimalText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalText(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("value is neither a number nor a string: %w", err)
	}
	*d = decimalText(n.String())
	return nil
}
