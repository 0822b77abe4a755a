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

package jsdep

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // the registry declares SHA-1 checksums
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"chainguard.dev/jsdep/pkg/lock"
	"chainguard.dev/jsdep/pkg/npm/registry"
)

// fakeVersion describes one published version served by the fake registry.
type fakeVersion struct {
	main   string
	deps   map[string]string
	files  map[string]string
	shasum string // overrides the real checksum when set
}

// newFakeRegistry serves packuments, manifests, and tarballs for the given
// packages and returns the server's base URL.
func newFakeRegistry(t *testing.T, packages map[string]map[string]fakeVersion) string {
	t.Helper()

	mux := http.NewServeMux()
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)

	for name, versions := range packages {
		packument := &registry.Packument{
			Name:     name,
			Versions: map[string]*registry.Manifest{},
		}
		for version, fv := range versions {
			data := gzipTarball(t, fv.files)
			shasum := fv.shasum
			if shasum == "" {
				digest := sha1.Sum(data) //nolint:gosec // the registry declares SHA-1 checksums
				shasum = hex.EncodeToString(digest[:])
			}
			tarPath := "/tarballs/" + name + "-" + version + ".tgz"
			manifest := &registry.Manifest{
				Name:         name,
				Version:      version,
				Main:         fv.main,
				Dependencies: fv.deps,
				Dist: registry.Dist{
					Tarball: s.URL + tarPath,
					Shasum:  shasum,
				},
			}
			packument.Versions[version] = manifest

			mux.HandleFunc("/"+name+"/"+version, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, json.NewEncoder(w).Encode(manifest))
			})
			mux.HandleFunc(tarPath, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(data)
			})
		}
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewEncoder(w).Encode(packument))
		})
	}

	return s.URL + "/"
}

func gzipTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestInstall(t *testing.T) {
	registryURL := newFakeRegistry(t, map[string]map[string]fakeVersion{
		"left-pad": {
			"1.0.0": {files: map[string]string{"package/index.js": "v1"}},
			"1.3.0": {
				main:  "index.js",
				deps:  map[string]string{"pad-core": ">=1.0.0"},
				files: map[string]string{"package/index.js": "module.exports = leftPad;"},
			},
		},
		"pad-core": {
			"1.2.0": {files: map[string]string{"package/core.js": "core"}},
		},
	})

	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "js")
	symlinkDir := filepath.Join(workDir, "bin")
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	j, err := New(
		WithRequirements("left-pad >=1.0.0"),
		WithRegistryURL(registryURL),
		WithOutputDir(outputDir),
		WithSymlinkDir(symlinkDir),
		WithLockfile(lockfile),
	)
	require.NoError(t, err)

	paths, err := j.Install(context.Background())
	require.NoError(t, err)

	require.Contains(t, paths, lockfile)
	require.Contains(t, paths, filepath.Join(outputDir, "left-pad"))
	require.Contains(t, paths, filepath.Join(outputDir, "pad-core"))
	require.Contains(t, paths, filepath.Join(symlinkDir, "index.js"))

	locked, err := lock.FromFile(lockfile)
	require.NoError(t, err)
	require.Equal(t, lock.Lock{"left-pad": "1.3.0", "pad-core": "1.2.0"}, locked)

	content, err := os.ReadFile(filepath.Join(outputDir, "left-pad", "index.js"))
	require.NoError(t, err)
	require.Equal(t, "module.exports = leftPad;", string(content))
	require.FileExists(t, filepath.Join(outputDir, "pad-core", "core.js"))
}

func TestInstallChecksumFailureContinuesOthers(t *testing.T) {
	registryURL := newFakeRegistry(t, map[string]map[string]fakeVersion{
		"good-pkg": {
			"1.0.0": {files: map[string]string{"package/index.js": "ok"}},
		},
		"bad-pkg": {
			"1.0.0": {
				files:  map[string]string{"package/index.js": "tampered"},
				shasum: strings.Repeat("0", 40),
			},
		},
	})

	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "js")
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	j, err := New(
		WithRequirements("good-pkg", "bad-pkg"),
		WithRegistryURL(registryURL),
		WithOutputDir(outputDir),
		WithLockfile(lockfile),
	)
	require.NoError(t, err)

	_, err = j.Install(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "bad-pkg")
	require.ErrorContains(t, err, "checksum mismatch")

	// the failure is scoped to the bad package
	require.FileExists(t, filepath.Join(outputDir, "good-pkg", "index.js"))
	require.NoDirExists(t, filepath.Join(outputDir, "bad-pkg"))

	// resolution succeeded, so the lock was still written
	locked, err := lock.FromFile(lockfile)
	require.NoError(t, err)
	require.Equal(t, lock.Lock{"good-pkg": "1.0.0", "bad-pkg": "1.0.0"}, locked)
}

func TestInstallResolutionFailureWritesNothing(t *testing.T) {
	registryURL := newFakeRegistry(t, map[string]map[string]fakeVersion{
		"left-pad": {
			"1.0.0": {files: map[string]string{"package/index.js": "v1"}},
		},
	})

	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "js")
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	j, err := New(
		WithRequirements("left-pad >=2.0.0"),
		WithRegistryURL(registryURL),
		WithOutputDir(outputDir),
		WithLockfile(lockfile),
	)
	require.NoError(t, err)

	_, err = j.Install(context.Background())
	require.Error(t, err)

	require.NoFileExists(t, lockfile)
	require.NoDirExists(t, outputDir)
}

func TestInstallNoRequirements(t *testing.T) {
	workDir := t.TempDir()
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	j, err := New(WithLockfile(lockfile))
	require.NoError(t, err)

	paths, err := j.Install(context.Background())
	require.NoError(t, err)
	require.Empty(t, paths)
	require.NoFileExists(t, lockfile)
}

func TestResolveTouchesNothing(t *testing.T) {
	registryURL := newFakeRegistry(t, map[string]map[string]fakeVersion{
		"left-pad": {
			"1.3.0": {files: map[string]string{"package/index.js": "v1"}},
		},
	})

	workDir := t.TempDir()
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	j, err := New(
		WithRequirements("left-pad"),
		WithRegistryURL(registryURL),
		WithLockfile(lockfile),
	)
	require.NoError(t, err)

	resolved, err := j.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]string{"left-pad": "1.3.0"}, resolved)
	require.NoFileExists(t, lockfile)
}

func TestInstallFromConfig(t *testing.T) {
	registryURL := newFakeRegistry(t, map[string]map[string]fakeVersion{
		"left-pad": {
			"1.3.0": {main: "index.js", files: map[string]string{"package/index.js": "v1"}},
		},
	})

	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "js")
	lockfile := filepath.Join(workDir, lock.DefaultPath)

	configFile := filepath.Join(workDir, "jsdep.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
requirements:
  - left-pad
output-directory: `+outputDir+`
registry: `+registryURL+`
lockfile: `+lockfile+`
`), 0o644))

	j, err := New(WithConfig(configFile))
	require.NoError(t, err)

	paths, err := j.Install(context.Background())
	require.NoError(t, err)
	require.Contains(t, paths, filepath.Join(outputDir, "left-pad"))
	require.FileExists(t, filepath.Join(outputDir, "left-pad", "index.js"))
}

func TestInstallConcurrent(t *testing.T) {
	packages := map[string]map[string]fakeVersion{}
	reqs := []string{}
	for _, name := range []string{"pkg-a", "pkg-b", "pkg-c", "pkg-d"} {
		packages[name] = map[string]fakeVersion{
			"1.0.0": {files: map[string]string{"package/index.js": name}},
		}
		reqs = append(reqs, name)
	}
	registryURL := newFakeRegistry(t, packages)

	workDir := t.TempDir()
	outputDir := filepath.Join(workDir, "js")

	j, err := New(
		WithRequirements(reqs...),
		WithRegistryURL(registryURL),
		WithOutputDir(outputDir),
		WithLockfile(filepath.Join(workDir, lock.DefaultPath)),
		WithConcurrency(4),
	)
	require.NoError(t, err)

	_, err = j.Install(context.Background())
	require.NoError(t, err)
	for name := range packages {
		require.FileExists(t, filepath.Join(outputDir, name, "index.js"))
	}
}
