package client

import (
	"context"
)

// HealthClient checks the liveness of one NE Navi service.
type HealthClient struct {
	client *Client
	name   string
}

// NewHealthClient creates a health client for a named service base.
func NewHealthClient(client *Client, name string) *HealthClient {
	return &HealthClient{client: client, name: name}
}

// healthResponse is the backend's health payload.
type healthResponse struct {
	Status string `json:"status"`
}

// ServiceHealth is the observed state of one service.
type ServiceHealth struct {
	Name    string
	Healthy bool
	Status  string
	Err     error
}

// Name returns the service name this client checks.
func (h *HealthClient) Name() string {
	return h.name
}

// Check probes the service's health endpoint. Transport failures and
// non-2xx answers both come back as an unhealthy result, not an error;
// health checks are advisory.
func (h *HealthClient) Check(ctx context.Context) ServiceHealth {
	var resp healthResponse
	if err := h.client.GetJSON(ctx, "/health", nil, &resp); err != nil {
		return ServiceHealth{Name: h.name, Healthy: false, Err: err}
	}

	healthy := resp.Status == "ok" || resp.Status == "healthy"
	return ServiceHealth{Name: h.name, Healthy: healthy, Status: resp.Status}
}
