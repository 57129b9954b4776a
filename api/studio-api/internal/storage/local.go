// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rapidaai/demostudio/pkg/commons"
)

type localStore struct {
	logger commons.Logger
	root   string
}

// NewLocalStore keeps artifacts on disk under root/<sessionID>/.
func NewLocalStore(logger commons.Logger, root string) (ArtifactStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording root %s: %w", root, err)
	}
	return &localStore{logger: logger, root: root}, nil
}

func (s *localStore) Promote(ctx context.Context, sessionID, filename, tempPath string) (string, int64, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create session dir %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filename)

	// Copy, never rename: temp storage may be on a different device.
	size, err := copyFile(tempPath, dst)
	if err != nil {
		return "", 0, err
	}
	if err := os.Remove(tempPath); err != nil {
		s.logger.Warnf("storage: failed to delete temporary %s: %v", tempPath, err)
	}

	s.logger.Infof("storage: promoted %s → %s (%d bytes)", tempPath, dst, size)
	return dst, size, nil
}

func (s *localStore) Put(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create session dir %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filename)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", dst, err)
	}
	return dst, nil
}

func (s *localStore) SignedURL(ctx context.Context, ref string) (string, error) {
	if _, err := os.Stat(ref); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return ref, nil
}

func (s *localStore) Remove(ctx context.Context, ref string) error {
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artifact %s: %w", ref, err)
	}
	return nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	size, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return size, nil
}
