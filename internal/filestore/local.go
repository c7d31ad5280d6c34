package filestore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/pdfqa/internal/pkg/jwt"
)

type localConfig struct {
	Dir string `json:"dir"`
	// PublicURL is the externally reachable base of the api, signed links
	// point at PublicURL + "/api/v1/files/<name>".
	PublicURL string `json:"public_url"`
	Secret    string `json:"secret"`
}

type localStore struct {
	dir       string
	publicURL string
	secret    []byte
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	if config.Secret == "" {
		return nil, fmt.Errorf("local store secret is required")
	}
	return NewLocalStore(config.Dir, config.PublicURL, []byte(config.Secret)), nil
}

func NewLocalStore(dir, publicURL string, secret []byte) Store {
	return &localStore{dir: dir, publicURL: strings.TrimSuffix(publicURL, "/"), secret: secret}
}

func (s *localStore) Type() string {
	return "local"
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid file name")
	}
	return nil
}

func (s *localStore) List(ctx context.Context, suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !hasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *localStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(s.dir, name))
}

func (s *localStore) Read(ctx context.Context, name string) ([]byte, error) {
	return readAll(ctx, s, name)
}

func (s *localStore) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	token, err := jwt.GenerateToken(name, s.secret, ttl)
	if err != nil {
		return "", err
	}
	return s.publicURL + "/api/v1/files/" + url.PathEscape(name) + "?token=" + url.QueryEscape(token), nil
}

func (s *localStore) Verify(name string, token string) error {
	return jwt.VerifyObject(token, name, s.secret)
}
