package alertstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/config"
	"github.com/iotsentry/iotsentry/internal/types"
)

// Client queries the Wazuh indexer (OpenSearch) for alert documents.
type Client struct {
	os        *opensearch.Client
	index     string
	maxAlerts int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewClient(cfg config.AlertStoreConfig, logger *zap.Logger) (*Client, error) {
	if cfg.InsecureSkipVerify {
		logger.Warn("Alert store TLS certificate verification is disabled")
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password(),
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert store client: %w", err)
	}

	maxAlerts := cfg.MaxAlerts
	if maxAlerts <= 0 {
		maxAlerts = 100
	}

	return &Client{
		os:        osClient,
		index:     cfg.Index,
		maxAlerts: maxAlerts,
		timeout:   cfg.RequestTimeout,
		logger:    logger,
	}, nil
}

// searchResponse covers the slice of the OpenSearch response the engine
// needs: rule level and timestamp per hit.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Timestamp string `json:"timestamp"`
				Rule      struct {
					Level int `json:"level"`
				} `json:"rule"`
				Data struct {
					SrcIP string `json:"srcip"`
				} `json:"data"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// AlertsBySourceIP returns all alerts for the given source IP inside the
// trailing window. Store failures and malformed responses are reported as
// types.ErrStoreUnavailable; the fallback decision belongs to the caller.
func (c *Client) AlertsBySourceIP(ctx context.Context, ip string, window time.Duration) ([]Alert, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	query := map[string]any{
		"size": c.maxAlerts,
		"query": map[string]any{
			"bool": map[string]any{
				"must": []any{
					map[string]any{"match": map[string]any{"data.srcip": ip}},
					map[string]any{"range": map[string]any{
						"timestamp": map[string]any{
							"gte": fmt.Sprintf("now-%ds", int(window.Seconds())),
						},
					}},
				},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{c.index},
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("%w: search request failed: %v", types.ErrStoreUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search returned status %s", types.ErrStoreUnavailable, res.Status())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: malformed search response: %v", types.ErrStoreUnavailable, err)
	}

	alerts := make([]Alert, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		alerts = append(alerts, Alert{
			SourceIP:  hit.Source.Data.SrcIP,
			Severity:  hit.Source.Rule.Level,
			Timestamp: parseTimestamp(hit.Source.Timestamp),
		})
	}

	return alerts, nil
}

// Wazuh writes timestamps in a couple of ISO-8601 variants.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
