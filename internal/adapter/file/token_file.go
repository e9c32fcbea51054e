package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/domain"
	"github.com/mercadodasophia-design/aliexpress-dropshipping-api/internal/repository"
)

// DefaultTokenPath matches the location used by earlier deployments.
const DefaultTokenPath = "data/tokens.json"

// TokenFile implements TokenBackup as a single JSON document on disk.
type TokenFile struct {
	path string
}

var _ repository.TokenBackup = (*TokenFile)(nil)

// NewTokenFile constructs a file-backed token backup.
func NewTokenFile(path string) *TokenFile {
	if path == "" {
		path = DefaultTokenPath
	}
	return &TokenFile{path: path}
}

func (f *TokenFile) Name() string {
	return "file"
}

// Path returns the file location.
func (f *TokenFile) Path() string {
	return f.path
}

// WriteToken writes through a temp file and rename so readers never observe a partial document.
func (f *TokenFile) WriteToken(_ context.Context, record domain.TokenRecord) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// ReadToken returns nil, nil when the file does not exist.
func (f *TokenFile) ReadToken(_ context.Context) (*domain.TokenRecord, error) {
	payload, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var record domain.TokenRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &record, nil
}
