package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/pdfqa/internal/config"
)

// Store is the document source. Names are object names relative to the
// store root, the same names end up in chunk source references.
type Store interface {
	Type() string
	List(ctx context.Context, suffix string) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Read(ctx context.Context, name string) ([]byte, error)
	// SignedURL returns a link that grants read access to name until ttl
	// elapses. It is minted per request and never stored.
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// TokenVerifier is implemented by stores that serve their own signed
// links through the files endpoint.
type TokenVerifier interface {
	Verify(name string, token string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.FileStoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported file store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func hasSuffix(name, suffix string) bool {
	return suffix == "" || strings.HasSuffix(strings.ToLower(name), strings.ToLower(suffix))
}

func readAll(ctx context.Context, s Store, name string) ([]byte, error) {
	rc, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}
