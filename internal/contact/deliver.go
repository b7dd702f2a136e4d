package contact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Deliverer hands a submission to whatever receives contact forms.
type Deliverer interface {
	Deliver(ctx context.Context, p Payload) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, p Payload) error

func (f DelivererFunc) Deliver(ctx context.Context, p Payload) error { return f(ctx, p) }

// DeliveryError is a transport failure or a non-2xx answer.
type DeliveryError struct {
	Status int // 0 when no response arrived
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("contact delivery: unexpected status %d", e.Status)
	}
	return fmt.Sprintf("contact delivery: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// HTTPDeliverer posts the form-encoded payload to a fixed endpoint.
type HTTPDeliverer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPDeliverer returns a deliverer with its own client timeout.
func NewHTTPDeliverer(endpoint string, timeout time.Duration) *HTTPDeliverer {
	return &HTTPDeliverer{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

// Deliver issues exactly one POST. It never retries.
func (h *HTTPDeliverer) Deliver(ctx context.Context, p Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, strings.NewReader(p.Encode()))
	if err != nil {
		return &DeliveryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Status: resp.StatusCode}
	}
	return nil
}
