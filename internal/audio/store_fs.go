package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileStore keeps artifacts as files in one directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Put(_ context.Context, a Artifact) error {
	if err := ValidateRef(a.Ref); err != nil {
		return err
	}
	final := filepath.Join(s.dir, a.Ref)
	if _, err := os.Stat(final); err == nil {
		return fmt.Errorf("%w: %s", ErrArtifactExists, a.Ref)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+a.Ref+"-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close artifact: %w", err)
	}
	// Readers only ever see complete files.
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish artifact: %w", err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, ref string) (Artifact, error) {
	if err := ValidateRef(ref); err != nil {
		return Artifact{}, err
	}
	path := filepath.Join(s.dir, ref)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, ErrArtifactNotFound
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	a := Artifact{Ref: ref, MIMEType: MIMETypeForRef(ref), Data: data}
	if info, err := os.Stat(path); err == nil {
		a.CreatedAt = info.ModTime().UTC()
	}
	return a, nil
}

func (s *FileStore) Prune(_ context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("list audio dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
