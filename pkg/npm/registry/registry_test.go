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

package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const leftPadPackument = `{
	"name": "left-pad",
	"dist-tags": {"latest": "1.3.0"},
	"versions": {
		"1.0.0": {"name": "left-pad", "version": "1.0.0", "dist": {"tarball": "http://example.com/left-pad-1.0.0.tgz", "shasum": "aaa"}},
		"1.3.0": {"name": "left-pad", "version": "1.3.0", "main": "index", "dist": {"tarball": "http://example.com/left-pad-1.3.0.tgz", "shasum": "bbb"}}
	}
}`

const leftPadManifest = `{
	"name": "left-pad",
	"version": "1.3.0",
	"main": "index",
	"dependencies": {"util": ">=1.0.0"},
	"dist": {"tarball": "http://example.com/left-pad-1.3.0.tgz", "shasum": "bbb"}
}`

func TestPackument(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/left-pad", r.URL.Path)
		hits.Add(1)
		_, _ = w.Write([]byte(leftPadPackument))
	}))
	defer s.Close()

	c := NewClient(s.URL+"/", s.Client())
	p, err := c.Packument(context.Background(), "left-pad")
	require.NoError(t, err)
	require.Equal(t, "left-pad", p.Name)
	require.Len(t, p.Versions, 2)
	require.Equal(t, "http://example.com/left-pad-1.3.0.tgz", p.Versions["1.3.0"].Dist.Tarball)

	// second query is served from the cache
	p2, err := c.Packument(context.Background(), "left-pad")
	require.NoError(t, err)
	require.Same(t, p, p2)
	require.Equal(t, int32(1), hits.Load())
}

func TestManifest(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/left-pad/1.3.0", r.URL.Path)
		hits.Add(1)
		_, _ = w.Write([]byte(leftPadManifest))
	}))
	defer s.Close()

	c := NewClient(s.URL+"/", s.Client())
	m, err := c.Manifest(context.Background(), "left-pad", "1.3.0")
	require.NoError(t, err)
	require.Equal(t, "1.3.0", m.Version)
	require.Equal(t, "index", m.Main)
	require.Equal(t, map[string]string{"util": ">=1.0.0"}, m.Dependencies)
	require.Equal(t, "bbb", m.Dist.Shasum)

	_, err = c.Manifest(context.Background(), "left-pad", "1.3.0")
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())
}

func TestPackumentStatusError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer s.Close()

	c := NewClient(s.URL+"/", s.Client())
	_, err := c.Packument(context.Background(), "ghost")

	var regErr *Error
	require.True(t, errors.As(err, &regErr))
	require.Equal(t, http.StatusNotFound, regErr.Status)
	require.Contains(t, regErr.Error(), "ghost")
}

func TestPackumentMalformedJSON(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "broken`))
	}))
	defer s.Close()

	c := NewClient(s.URL+"/", s.Client())
	_, err := c.Packument(context.Background(), "broken")

	var regErr *Error
	require.True(t, errors.As(err, &regErr))
	require.Zero(t, regErr.Status)
}

func TestDownload(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tarball bytes"))
	}))
	defer s.Close()

	c := NewClient("", s.Client())
	data, err := c.Download(context.Background(), s.URL+"/left-pad-1.3.0.tgz")
	require.NoError(t, err)
	require.Equal(t, []byte("tarball bytes"), data)
}

func TestDownloadStatusError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer s.Close()

	c := NewClient("", s.Client())
	_, err := c.Download(context.Background(), s.URL+"/left-pad-1.3.0.tgz")

	var regErr *Error
	require.True(t, errors.As(err, &regErr))
	require.Equal(t, http.StatusInternalServerError, regErr.Status)
}

func TestMetadataURL(t *testing.T) {
	c := NewClient("https://registry.npmjs.org/", nil)

	u, err := c.metadataURL("left-pad", "")
	require.NoError(t, err)
	require.Equal(t, "https://registry.npmjs.org/left-pad", u)

	u, err = c.metadataURL("left-pad", "1.3.0")
	require.NoError(t, err)
	require.Equal(t, "https://registry.npmjs.org/left-pad/1.3.0", u)
}
