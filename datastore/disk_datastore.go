package datastore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"
)

type (
	DiskDataStore struct {
		rootPath string
	}
)

// NewDiskDataStore opens rootPath, creating it when create is set.
func NewDiskDataStore(rootPath string, create bool) (*DiskDataStore, error) {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("error in filepath.Abs: %w", err)
	}
	if create {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("error in os.MkdirAll: %w", err)
		}
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("table directory %s: %w", abs, ErrNotFound)
		}
		return nil, fmt.Errorf("error in os.Stat: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	dds := &DiskDataStore{
		rootPath: abs,
	}
	logger.Debug().Str("path", abs).Msg("opened disk datastore")

	return dds, nil
}

func (dds *DiskDataStore) Path(name string) string {
	return filepath.Join(dds.rootPath, name)
}

func (dds *DiskDataStore) ReadFile(_ context.Context, name string) ([]byte, error) {
	b, err := os.ReadFile(dds.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("error in os.ReadFile: %w", err)
	}
	return b, nil
}

func (dds *DiskDataStore) MapFile(_ context.Context, name string) ([]byte, func() error, error) {
	f, err := os.Open(dds.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	} else if err != nil {
		return nil, nil, fmt.Errorf("error in os.Open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("error in f.Stat: %w", err)
	}
	// mmap refuses empty files
	if info.Size() == 0 {
		return []byte{}, func() error { return nil }, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("error in mmap.Map: %w", err)
	}
	return m, m.Unmap, nil
}

func (dds *DiskDataStore) WriteFileSync(ctx context.Context, name string, b []byte) error {
	f, err := os.OpenFile(dds.Path(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error in os.OpenFile: %w", err)
	}
	if _, err = f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("error in f.Write: %w", err)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("error in f.Sync: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("error in f.Close: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("file", name).Int("bytes", len(b)).Msg("wrote file")
	return nil
}

func (dds *DiskDataStore) Rename(_ context.Context, oldName, newName string) error {
	if err := os.Rename(dds.Path(oldName), dds.Path(newName)); err != nil {
		return fmt.Errorf("error in os.Rename: %w", err)
	}
	return nil
}

func (dds *DiskDataStore) Remove(_ context.Context, name string) error {
	err := os.Remove(dds.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error in os.Remove: %w", err)
	}
	return nil
}

func (dds *DiskDataStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dds.rootPath)
	if err != nil {
		return nil, fmt.Errorf("error in os.ReadDir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (dds *DiskDataStore) SyncDir(_ context.Context) error {
	d, err := os.Open(dds.rootPath)
	if err != nil {
		return fmt.Errorf("error in os.Open: %w", err)
	}
	defer d.Close()
	if err = d.Sync(); err != nil {
		return fmt.Errorf("error syncing directory: %w", err)
	}
	return nil
}

func (dds *DiskDataStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(dds.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("error in os.Stat: %w", err)
	}
	return true, nil
}

func (dds *DiskDataStore) Shutdown(_ context.Context) error {
	return nil
}
