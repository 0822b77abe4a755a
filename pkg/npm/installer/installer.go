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

// Package installer downloads, verifies, and unpacks resolved packages into
// the output directory, publishing each package atomically and optionally
// linking its entry file into a symlink directory.
package installer

import (
	"context"
	"crypto/sha1" //nolint:gosec // the registry declares SHA-1 checksums
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"

	"chainguard.dev/jsdep/pkg/npm/registry"
)

// DefaultOutputDir is where packages land when no output directory is
// configured.
const DefaultOutputDir = "parts/js/"

// entryFileExt is appended to a declared entry file when the bare name does
// not exist as a file.
const entryFileExt = ".js"

// Tracker records every filesystem path the installer creates, so the host
// can account for produced artifacts.
type Tracker interface {
	Created(path string)
}

// ChecksumMismatchError is returned when a downloaded tarball does not hash
// to the checksum the registry declared for it.
type ChecksumMismatchError struct {
	Package  string
	Expected string
	Computed string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, computed %s", e.Package, e.Expected, e.Computed)
}

// Installer installs resolved packages. It is safe to call Install for
// different packages concurrently; installs touch disjoint subdirectories
// of the output tree and distinct link names.
type Installer struct {
	client     *registry.Client
	outputDir  string
	symlinkDir string
	validate   bool
	tracker    Tracker
}

// Option configures an Installer.
type Option func(*Installer) error

// WithOutputDir sets the directory packages are unpacked into.
func WithOutputDir(dir string) Option {
	return func(i *Installer) error {
		if dir != "" {
			i.outputDir = dir
		}
		return nil
	}
}

// WithSymlinkDir enables entry-file symlinks in the given directory. Empty
// disables linking.
func WithSymlinkDir(dir string) Option {
	return func(i *Installer) error {
		i.symlinkDir = dir
		return nil
	}
}

// WithChecksumValidation toggles SHA-1 validation of downloaded tarballs.
// Default is on.
func WithChecksumValidation(validate bool) Option {
	return func(i *Installer) error {
		i.validate = validate
		return nil
	}
}

// WithTracker sets the collaborator that records created paths.
func WithTracker(t Tracker) Option {
	return func(i *Installer) error {
		i.tracker = t
		return nil
	}
}

type discardTracker struct{}

func (discardTracker) Created(string) {}

func New(client *registry.Client, opts ...Option) (*Installer, error) {
	i := &Installer{
		client:    client,
		outputDir: DefaultOutputDir,
		validate:  true,
		tracker:   discardTracker{},
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// Install fetches the distribution for name@version, verifies it, and
// publishes it at outputDir/name. A failure affects only this package.
func (i *Installer) Install(ctx context.Context, name, version string) error {
	ctx, span := otel.Tracer("jsdep").Start(ctx, fmt.Sprintf("Install(%q)", name+"@"+version))
	defer span.End()

	log := clog.FromContext(ctx)

	manifest, err := i.client.Manifest(ctx, name, version)
	if err != nil {
		return err
	}

	log.Infof("downloading %s from %s", name, manifest.Dist.Tarball)
	data, err := i.client.Download(ctx, manifest.Dist.Tarball)
	if err != nil {
		return err
	}

	if i.validate {
		digest := sha1.Sum(data) //nolint:gosec // the registry declares SHA-1 checksums
		computed := hex.EncodeToString(digest[:])
		if !strings.EqualFold(computed, manifest.Dist.Shasum) {
			return &ChecksumMismatchError{
				Package:  name,
				Expected: manifest.Dist.Shasum,
				Computed: computed,
			}
		}
	}

	pkgDir, err := i.publish(ctx, name, data)
	if err != nil {
		return err
	}
	i.tracker.Created(pkgDir)

	if i.symlinkDir != "" && manifest.Main != "" {
		link, err := i.linkEntryFile(pkgDir, manifest.Main)
		if err != nil {
			return err
		}
		i.tracker.Created(link)
	}

	return nil
}

// publish extracts the tarball into a staging directory inside the output
// tree and renames the archive's top-level folder into place. The rename is
// what makes the install atomic: a crash mid-extraction leaves only the
// staging directory, never a half-populated package directory.
func (i *Installer) publish(ctx context.Context, name string, data []byte) (string, error) {
	_, span := otel.Tracer("jsdep").Start(ctx, "publish")
	defer span.End()

	if err := os.MkdirAll(i.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", i.outputDir, err)
	}

	stage, err := os.MkdirTemp(i.outputDir, ".jsdep-stage-"+sanitizeName(name)+"-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := extractTarGz(stage, data); err != nil {
		return "", fmt.Errorf("extracting %s: %w", name, err)
	}

	root, err := archiveRoot(stage)
	if err != nil {
		return "", fmt.Errorf("locating package folder for %s: %w", name, err)
	}

	pkgDir := filepath.Join(i.outputDir, name)
	// Scoped names like @scope/pkg nest one level deeper.
	if err := os.MkdirAll(filepath.Dir(pkgDir), 0o755); err != nil {
		return "", fmt.Errorf("creating parent directory for %s: %w", pkgDir, err)
	}
	if err := os.RemoveAll(pkgDir); err != nil {
		return "", fmt.Errorf("removing previous contents of %s: %w", pkgDir, err)
	}
	if err := os.Rename(root, pkgDir); err != nil {
		return "", fmt.Errorf("publishing %s: %w", pkgDir, err)
	}

	return pkgDir, nil
}

// linkEntryFile points symlinkDir/<entry file name> at the package's entry
// file, replacing any link already there. Paths are resolved absolutely;
// the working directory is never changed.
func (i *Installer) linkEntryFile(pkgDir, main string) (string, error) {
	if err := os.MkdirAll(i.symlinkDir, 0o755); err != nil {
		return "", fmt.Errorf("creating symlink directory %s: %w", i.symlinkDir, err)
	}

	entry, err := filepath.Abs(filepath.Join(pkgDir, main))
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(entry); err != nil || fi.IsDir() {
		entry += entryFileExt
	}

	link := filepath.Join(i.symlinkDir, filepath.Base(entry))
	if fi, err := os.Lstat(link); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(link); err != nil {
			return "", fmt.Errorf("removing previous link %s: %w", link, err)
		}
	}
	if err := os.Symlink(entry, link); err != nil {
		return "", fmt.Errorf("linking %s -> %s: %w", link, entry, err)
	}

	return link, nil
}

// archiveRoot returns the directory the archive unpacked its contents
// into. npm tarballs conventionally use package/; fall back to a single
// top-level directory when the convention is not followed.
func archiveRoot(stage string) (string, error) {
	conventional := filepath.Join(stage, "package")
	if fi, err := os.Stat(conventional); err == nil && fi.IsDir() {
		return conventional, nil
	}

	entries, err := os.ReadDir(stage)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(stage, entries[0].Name()), nil
	}
	return "", fmt.Errorf("archive has no top-level package folder")
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "-", "@", "").Replace(name)
}
