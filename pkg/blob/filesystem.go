package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Filesystem persists objects on disk under a base directory.
type Filesystem struct {
	baseDir  string
	signer   *LinkSigner
	linkBase string
}

// NewFilesystem ensures the base directory exists and returns a handle.
func NewFilesystem(baseDir string, signer *LinkSigner, linkBase string) (*Filesystem, error) {
	if baseDir == "" {
		baseDir = "./backups"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Filesystem{baseDir: baseDir, signer: signer, linkBase: linkBase}, nil
}

// Driver implements Store.
func (s *Filesystem) Driver() string { return "filesystem" }

// Put writes body to key. Existing objects are never overwritten.
func (s *Filesystem) Put(_ context.Context, key string, body []byte, contentType string) (Info, error) {
	path, key, err := s.resolve(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Info{}, fmt.Errorf("prepare blob directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, key)
	}
	if err != nil {
		return Info{}, fmt.Errorf("create blob: %w", err)
	}
	if _, err := file.Write(body); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return Info{}, fmt.Errorf("write blob: %w", err)
	}
	if err := file.Close(); err != nil {
		return Info{}, fmt.Errorf("close blob: %w", err)
	}
	return s.stat(path, key, contentType)
}

// Get opens key for reading.
func (s *Filesystem) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	path, key, err := s.resolve(key)
	if err != nil {
		return Info{}, nil, err
	}
	info, err := s.stat(path, key, "")
	if err != nil {
		return Info{}, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return info, file, nil
}

// List returns objects whose key starts with prefix, sorted by key.
func (s *Filesystem) List(_ context.Context, prefix string) ([]Info, error) {
	infos := make([]Info, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.stat(path, key, "")
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes key, reporting whether it existed.
func (s *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	path, _, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete blob: %w", err)
	}
	return true, nil
}

// URL signs a download link served by the API under linkBase.
func (s *Filesystem) URL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.signer == nil {
		return "", errors.New("filesystem links require a signer")
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(key, ttl)
	if err != nil {
		return "", err
	}
	return s.linkBase + "?token=" + url.QueryEscape(token), nil
}

func (s *Filesystem) resolve(key string) (string, string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), key, nil
}

func (s *Filesystem) stat(path, key, contentType string) (Info, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Info{}, fmt.Errorf("stat blob: %w", err)
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	return Info{Key: key, Size: st.Size(), ContentType: contentType, LastModified: st.ModTime().UTC()}, nil
}
