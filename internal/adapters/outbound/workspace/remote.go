package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openkraft/issuegate/internal/domain"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxRemoteFileSize  = 64 << 20
)

// Roots is the wire format of an agent's workspace roots.
type Roots struct {
	Node  string   `json:"node"`
	Roots []string `json:"roots"`
}

// Remote implements domain.Workspace against an issuegate agent running on
// the build node. Request contexts bound every call.
type Remote struct {
	id      string
	baseURL string
	token   string
	client  *http.Client
}

// RemoteOption configures a Remote workspace.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithToken sets the bearer token sent to the agent.
func WithToken(token string) RemoteOption {
	return func(r *Remote) { r.token = token }
}

// NewRemote creates a workspace that talks to the agent at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		id:      baseURL,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Remote) ID() string { return r.id }

func (r *Remote) ReadFile(ctx context.Context, path string) ([]byte, error) {
	resp, err := r.get(ctx, "/v1/file", path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s from %s: %w", path, r.id, err)
	}
	if len(data) > maxRemoteFileSize {
		return nil, fmt.Errorf("reading %s from %s: file exceeds %d bytes", path, r.id, maxRemoteFileSize)
	}
	return data, nil
}

func (r *Remote) Stat(ctx context.Context, path string) (domain.FileStat, error) {
	var st domain.FileStat
	if err := r.getJSON(ctx, "/v1/stat", path, &st); err != nil {
		return domain.FileStat{}, err
	}
	return st, nil
}

func (r *Remote) ReadDir(ctx context.Context, dir string) ([]domain.DirEntry, error) {
	var entries []domain.DirEntry
	if err := r.getJSON(ctx, "/v1/dir", dir, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Roots asks the agent for its workspace roots.
func (r *Remote) Roots(ctx context.Context) (Roots, error) {
	var roots Roots
	if err := r.getJSON(ctx, "/v1/roots", "", &roots); err != nil {
		return Roots{}, err
	}
	return roots, nil
}

func (r *Remote) getJSON(ctx context.Context, endpoint, path string, v any) error {
	resp, err := r.get(ctx, endpoint, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s response from %s: %w", endpoint, r.id, err)
	}
	return nil
}

func (r *Remote) get(ctx context.Context, endpoint, path string) (*http.Response, error) {
	u := r.baseURL + endpoint
	if path != "" {
		u += "?" + url.Values{"path": []string{path}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", endpoint, err)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling agent %s: %w", r.id, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, &fs.PathError{Op: endpoint, Path: path, Err: fs.ErrNotExist}
	case http.StatusForbidden, http.StatusUnauthorized:
		resp.Body.Close()
		return nil, &fs.PathError{Op: endpoint, Path: path, Err: fs.ErrPermission}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("agent %s returned %s for %s: %s", r.id, resp.Status, endpoint, strings.TrimSpace(string(body)))
	}
}
