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

package installer

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// extractTarGz unpacks a gzip-compressed tar archive under dst. Entry names
// must stay inside dst; anything that would escape is rejected.
func extractTarGz(dst string, data []byte) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		target, err := sanitizePath(dst, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("creating directory %s: %w", header.Name, err)
			}

		case tar.TypeReg:
			// npm tarballs routinely omit directory entries.
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			// The parent may have been created by an earlier symlink entry;
			// lexical checks don't catch writes through it.
			if err := containedIn(dst, filepath.Dir(target)); err != nil {
				return fmt.Errorf("archive entry %q: %w", header.Name, err)
			}
			if err := writeOneFile(target, tr, header); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("archive entry %q links to absolute path %q", header.Name, header.Linkname)
			}
			if _, err := sanitizePath(filepath.Dir(target), header.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			if err := containedIn(dst, filepath.Dir(target)); err != nil {
				return fmt.Errorf("archive entry %q: %w", header.Name, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("creating symlink %s: %w", header.Name, err)
			}

		default:
			// pax headers and other special entries carry no file data
			// we care about.
			continue
		}
	}

	return nil
}

func writeOneFile(target string, r io.Reader, header *tar.Header) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, header.FileInfo().Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating file %s: %w", header.Name, err)
	}
	defer f.Close()

	if _, err := io.CopyN(f, r, header.Size); err != nil {
		return fmt.Errorf("writing content for %s: %w", header.Name, err)
	}
	return nil
}

// sanitizePath joins name onto dst and verifies the result stays inside
// dst.
func sanitizePath(dst, name string) (string, error) {
	target := filepath.Join(dst, name)
	if target != filepath.Clean(dst) && !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// containedIn resolves dir through any symlinks and verifies it is still
// inside dst on the real filesystem.
func containedIn(dst, dir string) error {
	base, err := filepath.EvalSymlinks(dst)
	if err != nil {
		return err
	}
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if real != base && !strings.HasPrefix(real, base+string(os.PathSeparator)) {
		return fmt.Errorf("resolves outside extraction directory")
	}
	return nil
}
