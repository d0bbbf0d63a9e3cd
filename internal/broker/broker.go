// Package broker forwards aggregated monitoring batches to a remote
// message broker over its HTTP publish API.
package broker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spxiwh/pegasus/internal/aggregate"
)

// DefaultTimeout bounds one publish attempt so a hung broker cannot
// wedge the relay's drain indefinitely.
const DefaultTimeout = 30 * time.Second

// envelope is the broker's publish payload. PayloadEncoding is always
// the literal "string"; the broker requires the marker.
type envelope struct {
	Properties      struct{} `json:"properties"`
	RoutingKey      string   `json:"routing_key"`
	Payload         string   `json:"payload"`
	PayloadEncoding string   `json:"payload_encoding"`
}

// Forwarder publishes batches best-effort. Delivery is
// fire-and-forget: callers log returned errors and drop the batch,
// they never retry or persist it.
type Forwarder struct {
	url        string
	username   string
	password   string
	routingKey string
	client     *http.Client
}

// Option adjusts a Forwarder.
type Option func(*Forwarder)

// WithTimeout overrides the per-publish timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Forwarder) { f.client.Timeout = d }
}

// New creates a forwarder for one broker endpoint. Credentials are an
// opaque "user:password" pair split at the first colon. Certificate
// and hostname verification are disabled: trust is established out of
// band by provisioning the endpoint/credential pair, and relay hosts
// routinely lack the broker's CA chain.
func New(url, credentials, routingKey string, opts ...Option) *Forwarder {
	username, password, _ := strings.Cut(credentials, ":")
	f := &Forwarder{
		url:        url,
		username:   username,
		password:   password,
		routingKey: routingKey,
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Send publishes one batch. The response body is read and discarded;
// a non-2xx status is reported as an error but carries no parsed
// detail beyond the status line.
func (f *Forwarder) Send(ctx context.Context, batch aggregate.Batch) error {
	body, err := json.Marshal(envelope{
		RoutingKey:      f.routingKey,
		Payload:         batch.Text(),
		PayloadEncoding: "string",
	})
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("broker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(f.username, f.password)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("broker: publish: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("broker: publish returned %s", resp.Status)
	}
	return nil
}
