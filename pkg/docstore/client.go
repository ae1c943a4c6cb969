package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
)

const (
	etagHeader    = "ETag"
	etagRequest   = "X-Firebase-ETag"
	ifMatchHeader = "if-match"
	pingTimeout   = 5 * time.Second
	maxErrorBody  = 2048
)

// ErrETagMismatch is returned by PutIfMatch when the stored value changed since it was read.
var ErrETagMismatch = errors.New("docstore: etag mismatch")

// Store is the path-addressed surface the repositories depend on.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Put(ctx context.Context, path string, value any) (json.RawMessage, error)
	Patch(ctx context.Context, path string, value any) (json.RawMessage, error)
	Delete(ctx context.Context, path string) error
	GetWithETag(ctx context.Context, path string) (json.RawMessage, string, error)
	PutIfMatch(ctx context.Context, path string, value any, etag string) (json.RawMessage, string, error)
	Keys(ctx context.Context, path string) ([]string, error)
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client talks to a Firebase Realtime Database style REST endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	authToken  string
	logg       *logger.Logger
}

func closeBody(ctx context.Context, logg *logger.Logger, body io.Closer) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil && logg != nil {
		logg.Warn(ctx, "docstore: closing response body failed")
	}
}

// NewClient builds a client for cfg.BaseURL. It does not contact the store; call Ping for that.
func NewClient(cfg config.DocStoreConfig, logg *logger.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("docstore base url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing docstore base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("docstore base url must be http(s), got %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		authToken:  cfg.AuthToken,
		logg:       logg,
	}, nil
}

// Get returns the raw JSON at path, or nil when nothing is stored there.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, nil, nil, nil)
	return body, err
}

// Put overwrites the subtree at path.
func (c *Client) Put(ctx context.Context, path string, value any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodPut, path, value, nil, nil)
	return body, err
}

// Patch merges the children of value into the subtree at path.
func (c *Client) Patch(ctx context.Context, path string, value any) (json.RawMessage, error) {
	body, _, err := c.do(ctx, http.MethodPatch, path, value, nil, nil)
	return body, err
}

// Delete removes the subtree at path. Deleting a missing path is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, _, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

// GetWithETag returns the value at path together with its ETag.
func (c *Client) GetWithETag(ctx context.Context, path string) (json.RawMessage, string, error) {
	return c.do(ctx, http.MethodGet, path, nil, map[string]string{etagRequest: "true"}, nil)
}

// PutIfMatch writes value only if the stored ETag still equals etag. On mismatch it
// returns the current value, its ETag and ErrETagMismatch.
func (c *Client) PutIfMatch(ctx context.Context, path string, value any, etag string) (json.RawMessage, string, error) {
	headers := map[string]string{etagRequest: "true", ifMatchHeader: etag}
	return c.do(ctx, http.MethodPut, path, value, headers, nil)
}

// Keys lists the immediate child keys under path without fetching their values.
func (c *Client) Keys(ctx context.Context, path string) ([]string, error) {
	body, _, err := c.do(ctx, http.MethodGet, path, nil, nil, url.Values{"shallow": []string{"true"}})
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var shallow map[string]json.RawMessage
	if err := json.Unmarshal(body, &shallow); err != nil {
		// a leaf value has no children
		return nil, nil
	}
	keys := make([]string, 0, len(shallow))
	for k := range shallow {
		keys = append(keys, k)
	}
	return SortedKeys(keys), nil
}

// Ping issues a shallow read of the root.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("docstore client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, _, err := c.do(ctx, http.MethodGet, "", nil, nil, url.Values{"shallow": []string{"true"}})
	return err
}

func (c *Client) do(ctx context.Context, method, path string, value any, headers map[string]string, query url.Values) (json.RawMessage, string, error) {
	if c == nil || c.httpClient == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeInternal, "docstore client not initialized")
	}

	endpoint, err := c.endpoint(path, query)
	if err != nil {
		return nil, "", err
	}

	var reader io.Reader
	if value != nil {
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode docstore payload")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build docstore request")
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "docstore request failed").
			WithDetails(map[string]any{"method": method, "path": path})
	}
	defer closeBody(ctx, c.logg, resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read docstore response")
	}
	etag := resp.Header.Get(etagHeader)

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		return normalize(body), etag, ErrETagMismatch
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, "", statusError(method, path, resp.StatusCode, body)
	}

	return normalize(body), etag, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	segments, err := SplitPath(path)
	if err != nil {
		return "", err
	}

	escaped := make([]string, 0, len(segments))
	for _, seg := range segments {
		escaped = append(escaped, url.PathEscape(seg))
	}

	prefix := strings.TrimRight(c.baseURL.Path, "/")
	rawPath := prefix + "/" + strings.Join(escaped, "/") + ".json"

	q := c.baseURL.Query()
	for k, v := range query {
		q[k] = v
	}
	if c.authToken != "" {
		q.Set("auth", c.authToken)
	}

	out := c.baseURL.Scheme + "://" + c.baseURL.Host + rawPath
	if enc := q.Encode(); enc != "" {
		out += "?" + enc
	}
	return out, nil
}

func normalize(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.RawMessage(trimmed)
}

func statusError(method, path string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	details := map[string]any{"method": method, "path": path, "status": status}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}

	cause := fmt.Errorf("docstore %s %s returned %d: %s", method, path, status, msg)
	if status == http.StatusBadRequest {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "document store rejected the request").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "document store unavailable").WithDetails(details)
}
