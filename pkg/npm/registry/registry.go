// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package registry is a client for the npm package registry metadata API.
//
// It exposes the two documents the resolver and installer need: the
// packument (the all-versions metadata document for a package) and the
// per-version manifest (dependencies plus the dist descriptor). Responses
// are memoized for the lifetime of the client, so a resolution run never
// asks the registry the same question twice.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"go.opentelemetry.io/otel"

	"golang.org/x/time/rate"
)

const (
	// DefaultRegistry is the public npm registry.
	DefaultRegistry = "https://registry.npmjs.org/"

	// MirrorRegistry is the CouchDB replica of the public registry.
	// Kept for reference; the client does not fail over to it.
	MirrorRegistry = "https://skimdb.npmjs.com/registry/"
)

// Packument is the full metadata document for a package, covering every
// published version.
type Packument struct {
	Name     string               `json:"name"`
	DistTags map[string]string    `json:"dist-tags,omitempty"`
	Versions map[string]*Manifest `json:"versions"`
}

// Manifest is the metadata for a single published version of a package.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Main         string            `json:"main,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Dist         Dist              `json:"dist"`
}

// Dist is the distribution descriptor for a version: where to download the
// tarball and what it should hash to.
type Dist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum"`
	Integrity string `json:"integrity,omitempty"`
}

// Error is returned for any failure talking to the registry: network
// errors, non-2xx statuses, and unparsable metadata.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("registry: GET %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("registry: GET %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client fetches and memoizes registry metadata. It is safe for concurrent
// use. Create one per resolution run so the memoization cache has run scope.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter

	mu         sync.Mutex
	packuments map[string]*Packument
	manifests  map[string]*Manifest
}

// NewClient returns a Client for the given registry base URL. An empty
// baseURL means DefaultRegistry. A nil httpClient means http.DefaultClient;
// callers that want retries pass a retryablehttp standard client.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultRegistry
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		baseURL:    baseURL,
		client:     httpClient,
		packuments: map[string]*Packument{},
		manifests:  map[string]*Manifest{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps metadata and download requests at rps requests per
// second. Zero or negative disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// metadataURL joins the registry base URL with the package name and an
// optional version as path segments.
func (c *Client) metadataURL(name, version string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing registry URL %q: %w", c.baseURL, err)
	}
	ref := name
	if version != "" {
		ref = name + "/" + version
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("building metadata URL for %q: %w", ref, err)
	}
	return u.String(), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &Error{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{URL: url, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{URL: url, Err: fmt.Errorf("decoding metadata: %w", err)}
	}
	return nil
}

// Packument returns the all-versions metadata document for name. The first
// call hits the network; subsequent calls return the memoized document.
func (c *Client) Packument(ctx context.Context, name string) (*Packument, error) {
	c.mu.Lock()
	if p, ok := c.packuments[name]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	ctx, span := otel.Tracer("jsdep").Start(ctx, fmt.Sprintf("Packument(%q)", name))
	defer span.End()

	u, err := c.metadataURL(name, "")
	if err != nil {
		return nil, &Error{URL: c.baseURL, Err: err}
	}

	var p Packument
	if err := c.getJSON(ctx, u, &p); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.packuments[name] = &p
	c.mu.Unlock()
	return &p, nil
}

// Manifest returns the metadata for one version of name, memoized by
// name@version.
func (c *Client) Manifest(ctx context.Context, name, version string) (*Manifest, error) {
	key := name + "@" + version

	c.mu.Lock()
	if m, ok := c.manifests[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	ctx, span := otel.Tracer("jsdep").Start(ctx, fmt.Sprintf("Manifest(%q)", key))
	defer span.End()

	u, err := c.metadataURL(name, version)
	if err != nil {
		return nil, &Error{URL: c.baseURL, Err: err}
	}

	var m Manifest
	if err := c.getJSON(ctx, u, &m); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.manifests[key] = &m
	c.mu.Unlock()
	return &m, nil
}

// Download fetches url and returns the raw bytes. It uses the same
// underlying HTTP client as the metadata calls, so retry and rate limit
// behavior is shared.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, span := otel.Tracer("jsdep").Start(ctx, fmt.Sprintf("Download(%q)", url))
	defer span.End()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return data, nil
}
