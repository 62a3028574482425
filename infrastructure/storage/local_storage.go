package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"chatstore/config"
)

var errLocalStorageDisabled = errors.New("local storage is not configured; set CHATSTORE_LOCAL_STORAGE_PATH to enable")

// LocalStorage handles element payload uploads to the local filesystem.
type LocalStorage struct {
	basePath string
	baseURL  string
	log      zerolog.Logger
	disabled bool
}

// NewLocalStorage creates a new local filesystem storage backend.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath := strings.TrimSpace(cfg.LocalStoragePath)
	if basePath == "" {
		logger.Warn().Msg("CHATSTORE_LOCAL_STORAGE_PATH is not set; local storage will be disabled")
		return &LocalStorage{
			log:      logger,
			disabled: true,
		}, nil
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	storage := &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSpace(cfg.LocalStorageBaseURL),
		log:      logger,
	}

	logger.Info().
		Str("path", basePath).
		Str("base_url", storage.baseURL).
		Msg("local storage initialized")

	return storage, nil
}

func (l *LocalStorage) ensureEnabled() error {
	if l.disabled {
		return errLocalStorageDisabled
	}
	return nil
}

// Put stores the payload under the key relative to the base path.
func (l *LocalStorage) Put(ctx context.Context, key string, data []byte, contentType string) (Descriptor, error) {
	if err := l.ensureEnabled(); err != nil {
		return Descriptor{}, err
	}

	fullPath, err := l.resolve(key)
	if err != nil {
		return Descriptor{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return Descriptor{}, fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return Descriptor{}, fmt.Errorf("failed to write file: %w", err)
	}

	l.log.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Str("content_type", contentType).
		Msg("payload written to local storage")

	return Descriptor{Key: key, URL: l.objectURL(key, fullPath)}, nil
}

// Delete removes the file under key.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := l.ensureEnabled(); err != nil {
		return err
	}
	fullPath, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// resolve maps a key onto the base path, rejecting keys that would
// escape the storage directory.
func (l *LocalStorage) resolve(key string) (string, error) {
	base := filepath.Clean(l.basePath)
	fullPath := filepath.Join(base, filepath.FromSlash(key))
	if fullPath == base || !strings.HasPrefix(fullPath, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes the storage directory", key)
	}
	return fullPath, nil
}

// Health checks if the storage directory is accessible.
func (l *LocalStorage) Health(ctx context.Context) error {
	if l.disabled {
		return nil
	}

	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return nil
}

func (l *LocalStorage) objectURL(key, fullPath string) string {
	if l.baseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(l.baseURL, "/"), filepath.ToSlash(key))
	}
	return fmt.Sprintf("file://%s", fullPath)
}
