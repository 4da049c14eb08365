// Package auth stores the judge API key in the OS keychain, falling back to
// a file in the app directory when no keychain is available.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "xray"
	keyringUser    = "judge_api_key"
	keyFileName    = "api_key"
	dirMode        = 0700
	fileMode       = 0600
)

// ErrNoCredential is returned when no key is stored.
var ErrNoCredential = errors.New("no stored API key")

// Store reads and writes the API key. Dir holds the fallback file.
type Store struct {
	Dir string
}

func (s Store) filePath() string {
	return filepath.Join(s.Dir, keyFileName)
}

// Save writes key to the keychain, or to the fallback file when the
// keychain is unavailable.
func (s Store) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}

	if err := keyring.Set(keyringService, keyringUser, key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(key)
	}

	// a previous fallback file is stale once the keychain holds the key
	s.removeFile()
	return nil
}

// Load returns the stored key. A key found only in the fallback file is
// moved to the keychain when possible.
func (s Store) Load() (string, error) {
	key, err := keyring.Get(keyringService, keyringUser)
	if err == nil && key != "" {
		return key, nil
	}

	key, err = s.loadFile()
	if err != nil {
		return "", err
	}

	if migrateErr := keyring.Set(keyringService, keyringUser, key); migrateErr == nil {
		slog.Info("migrated API key from file to OS keychain")
		s.removeFile()
	}

	return key, nil
}

// Delete removes the key from the keychain and the fallback file.
func (s Store) Delete() error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain delete failed", "error", err)
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing key file: %w", err)
	}
	return nil
}

func (s Store) saveFile(key string) error {
	if s.Dir == "" {
		return errors.New("credential directory required")
	}
	if err := os.MkdirAll(s.Dir, dirMode); err != nil {
		return fmt.Errorf("creating dir %s: %w", s.Dir, err)
	}
	if err := os.WriteFile(s.filePath(), []byte(key), fileMode); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (s Store) loadFile() (string, error) {
	if s.Dir == "" {
		return "", ErrNoCredential
	}
	b, err := os.ReadFile(s.filePath())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("reading key file %s: %w", s.filePath(), err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

func (s Store) removeFile() {
	if s.Dir == "" {
		return
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Debug("removing key file", "error", err)
	}
}
