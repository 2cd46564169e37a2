package clusterapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/dreamware/zonectl/internal/textutil"
)

// HTTPClient is the default Client implementation. Transport-level retry
// is delegated to retryablehttp's exponential backoff; this package never
// retries a request itself (§1 — transport retries are an external
// collaborator's concern, not the planner's).
type HTTPClient struct {
	base string
	http *retryablehttp.Client
}

// NewHTTPClient builds a client against baseURL (e.g. "http://localhost:9200").
func NewHTTPClient(baseURL string) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.Logger = nil
	rc.HTTPClient.Timeout = 10 * time.Second
	return &HTTPClient{base: strings.TrimRight(baseURL, "/"), http: rc}
}

func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *HTTPClient) put(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *HTTPClient) do(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clusterapi: %s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("clusterapi: reading response body: %w", err)
	}
	if resp.StatusCode >= 500 {
		return body, fmt.Errorf("clusterapi: %s %s: http %d", req.Method, req.URL, resp.StatusCode)
	}
	return body, nil
}

func (c *HTTPClient) NodesStats(ctx context.Context) ([]NodeStats, error) {
	body, err := c.get(ctx, "/_nodes/stats")
	if err != nil {
		return nil, err
	}

	var raw struct {
		Nodes map[string]struct {
			Name  string   `json:"name"`
			Host  string   `json:"host"`
			Roles []string `json:"roles"`

			Attributes map[string]string `json:"attributes"`
			JVM        struct {
				Mem struct {
					HeapMaxInBytes int64 `json:"heap_max_in_bytes"`
				} `json:"mem"`
			} `json:"jvm"`
			FS struct {
				Total struct {
					TotalInBytes     int64 `json:"total_in_bytes"`
					AvailableInBytes int64 `json:"available_in_bytes"`
				} `json:"total"`
			} `json:"fs"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("clusterapi: decoding /_nodes/stats: %w", err)
	}

	out := make([]NodeStats, 0, len(raw.Nodes))
	for _, n := range raw.Nodes {
		out = append(out, NodeStats{
			Name:               n.Name,
			Host:               n.Host,
			Roles:              n.Roles,
			Zone:               n.Attributes["zone"],
			HeapMaxBytes:       n.JVM.Mem.HeapMaxInBytes,
			DiskTotalBytes:     n.FS.Total.TotalInBytes,
			DiskAvailableBytes: n.FS.Total.AvailableInBytes,
		})
	}
	return out, nil
}

func (c *HTTPClient) CatIndices(ctx context.Context) ([]CatIndexRow, error) {
	body, err := c.get(ctx, "/_cat/indices")
	if err != nil {
		return nil, err
	}
	rows := textutil.ConvertTableToList(string(body), []string{"status", "state", "index", "uuid", "_remainder"})
	out := make([]CatIndexRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, CatIndexRow{Status: r["status"], State: r["state"], Index: r["index"], UUID: r["uuid"]})
	}
	return out, nil
}

func (c *HTTPClient) CatShards(ctx context.Context) ([]CatShardRow, error) {
	body, err := c.get(ctx, "/_cat/shards")
	if err != nil {
		return nil, err
	}
	rows := textutil.ConvertTableToList(string(body), []string{"index", "i", "type", "status", "num", "size", "ip", "node"})
	out := make([]CatShardRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, CatShardRow{
			Index: r["index"], I: r["i"], Type: r["type"], Status: r["status"],
			Num: r["num"], Size: r["size"], IP: r["ip"], Node: r["node"],
		})
	}
	return out, nil
}

func (c *HTTPClient) PutIndexSettings(ctx context.Context, index string, numberOfReplicas int) error {
	body := map[string]any{"index": map[string]any{"number_of_replicas": numberOfReplicas}}
	_, err := c.put(ctx, "/"+index+"/_settings", body)
	return err
}

func (c *HTTPClient) PutClusterSettings(ctx context.Context, persistent, transient map[string]any) error {
	body := map[string]any{"persistent": persistent, "transient": transient}
	_, err := c.put(ctx, "/_cluster/settings", body)
	return err
}

// PutRaw issues an operator-supplied PUT command verbatim, used only for
// the "finally" exit commands (§4.6) whose path and body come from the
// operator configuration file rather than from this package's own API
// knowledge. A string body is sent as-is (the operator already wrote
// JSON in the config file); anything else is marshaled first.
func (c *HTTPClient) PutRaw(ctx context.Context, path string, body any) error {
	raw, ok := body.(string)
	if !ok {
		_, err := c.put(ctx, path, body)
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, c.base+path, strings.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *HTTPClient) Reroute(ctx context.Context, commands []Command) (RerouteResult, error) {
	body, err := c.post(ctx, "/_cluster/reroute", map[string]any{"commands": commands})
	if err != nil {
		return RerouteResult{}, err
	}
	return parseRerouteResult(body)
}

// parseRerouteResult handles both the structured JSON error shape and the
// legacy "[NO(reason)]" string form the cluster may return (§6, §7).
func parseRerouteResult(body []byte) (RerouteResult, error) {
	var ack struct {
		Acknowledged bool `json:"acknowledged"`
		Error        struct {
			RootCause struct {
				Reason string `json:"reason"`
			} `json:"root_cause"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &ack); err == nil {
		if ack.Acknowledged {
			return RerouteResult{Acknowledged: true}, nil
		}
		reason := ack.Error.RootCause.Reason
		if reason == "" {
			reason = ack.Error.Reason
		}
		if reason != "" {
			return RerouteResult{Acknowledged: false, Reason: reason}, nil
		}
	}

	if reason, ok := extractLegacyReason(string(body)); ok {
		return RerouteResult{Acknowledged: false, Reason: reason}, nil
	}

	return RerouteResult{Acknowledged: false, Reason: strings.TrimSpace(string(body))}, nil
}

// extractLegacyReason pulls the text out of a legacy "...[NO(reason)]..."
// response body.
func extractLegacyReason(body string) (string, bool) {
	start := strings.Index(body, "[NO(")
	if start == -1 {
		return "", false
	}
	start += len("[NO(")
	end := strings.Index(body[start:], ")]")
	if end == -1 {
		return "", false
	}
	return body[start : start+end], true
}
