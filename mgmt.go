// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

type (
	// MgmtConfig holds the connection parameters for the RabbitMQ management
	// HTTP API.
	MgmtConfig struct {
		Host     string
		Port     int
		VHost    string
		User     string
		Password string
	}

	// MgmtClient is a thin client for the RabbitMQ management HTTP API,
	// covering the queue inspection and publish endpoints the broker wrapper
	// cannot reach over AMQP.
	MgmtClient struct {
		config     MgmtConfig
		httpClient *http.Client
		baseURL    string
	}

	// QueueInfo is the subset of queue facts the management API reports that
	// operational scripts care about.
	QueueInfo struct {
		Name            string `json:"name"`
		VHost           string `json:"vhost"`
		Messages        int    `json:"messages"`
		MessagesReady   int    `json:"messages_ready"`
		MessagesUnacked int    `json:"messages_unacknowledged"`
		Consumers       int    `json:"consumers"`
		Durable         bool   `json:"durable"`
		AutoDelete      bool   `json:"auto_delete"`
		State           string `json:"state"`
		IdleSince       string `json:"idle_since"`
	}

	// mgmtPublishRequest is the payload of the publish endpoint.
	mgmtPublishRequest struct {
		Properties      map[string]any `json:"properties"`
		RoutingKey      string         `json:"routing_key"`
		Payload         string         `json:"payload"`
		PayloadEncoding string         `json:"payload_encoding"`
	}

	// mgmtPublishResponse is the response of the publish endpoint.
	mgmtPublishResponse struct {
		Routed bool `json:"routed"`
	}
)

// mgmtDefaultExchange is the exchange the publish endpoint routes through.
const mgmtDefaultExchange = "amq.default"

// NewMgmtClient creates a management API client.
func NewMgmtClient(config MgmtConfig) *MgmtClient {
	return &MgmtClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    fmt.Sprintf("http://%s:%d", config.Host, config.Port),
	}
}

// QueueInfo fetches the queue facts for the named queue in the configured vhost.
func (m *MgmtClient) QueueInfo(ctx context.Context, queue string) (*QueueInfo, error) {
	var info QueueInfo
	apiPath := fmt.Sprintf("/api/queues/%s/%s",
		url.PathEscape(m.config.VHost), url.PathEscape(queue))
	if err := m.get(ctx, apiPath, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Publish sends a JSON message to the named queue through the default
// exchange and reports whether the broker routed it.
func (m *MgmtClient) Publish(ctx context.Context, queue string, msg any) (bool, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}

	apiPath := fmt.Sprintf("/api/exchanges/%s/%s/publish",
		url.PathEscape(m.config.VHost), url.PathEscape(mgmtDefaultExchange))

	var resp mgmtPublishResponse
	err = m.post(ctx, apiPath, mgmtPublishRequest{
		Properties:      map[string]any{},
		RoutingKey:      queue,
		Payload:         string(payload),
		PayloadEncoding: "string",
	}, &resp)
	if err != nil {
		return false, err
	}

	return resp.Routed, nil
}

func (m *MgmtClient) get(ctx context.Context, apiPath string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+apiPath, nil)
	if err != nil {
		return err
	}
	return m.do(req, out)
}

func (m *MgmtClient) post(ctx context.Context, apiPath string, body, out any) error {
	byt, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+apiPath, bytes.NewReader(byt))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", JsonContentType)
	return m.do(req, out)
}

func (m *MgmtClient) do(req *http.Request, out any) error {
	req.SetBasicAuth(m.config.User, m.config.Password)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		logrus.WithError(err).Errorf("remoteops management api request failed: %s", req.URL.Path)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("management api %s returned %s", req.URL.Path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
