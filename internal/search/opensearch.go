package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/opensearch-project/opensearch-go/v2"
)

// OpenSearchConfig holds connection settings for the search cluster
type OpenSearchConfig struct {
	Addresses []string
	Username  string
	Password  string
}

// OpenSearchCluster adapts the opensearch-go client to Cluster.
type OpenSearchCluster struct {
	client *opensearch.Client
}

var _ Cluster = (*OpenSearchCluster)(nil)

// NewOpenSearchCluster creates a cluster client. No request is made until first use.
func NewOpenSearchCluster(cfg OpenSearchConfig) (*OpenSearchCluster, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return &OpenSearchCluster{client: client}, nil
}

// Search runs body against index
func (c *OpenSearchCluster) Search(ctx context.Context, index string, body []byte) ([]byte, error) {
	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(index),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search failed with status %d: %s", res.StatusCode, truncate(payload, 512))
	}
	return payload, nil
}

// Health returns the cluster status color
func (c *OpenSearchCluster) Health(ctx context.Context) (string, error) {
	res, err := c.client.Cluster.Health(c.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.IsError() {
		return "", fmt.Errorf("cluster health failed with status %d", res.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return "", fmt.Errorf("failed to decode cluster health: %w", err)
	}
	return health.Status, nil
}

// ResolveAlias returns the indices alias points to, sorted by name
func (c *OpenSearchCluster) ResolveAlias(ctx context.Context, alias string) ([]string, error) {
	res, err := c.client.Indices.GetAlias(
		c.client.Indices.GetAlias.WithContext(ctx),
		c.client.Indices.GetAlias.WithName(alias),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("alias lookup failed with status %d", res.StatusCode)
	}

	var aliases map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&aliases); err != nil {
		return nil, fmt.Errorf("failed to decode alias response: %w", err)
	}

	indices := make([]string, 0, len(aliases))
	for index := range aliases {
		indices = append(indices, index)
	}
	sort.Strings(indices)
	return indices, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
