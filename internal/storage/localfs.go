package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/maneesh/filesmanager/internal/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LocalStore keeps content as plain files under a root folder
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage folder: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (ls *LocalStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", common.NewValidationError("invalid storage key")
	}
	return filepath.Join(ls.root, key), nil
}

// Put writes the object atomically via a temp file and rename
func (ls *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	_, span := tracer.Start(ctx, "localfs.put",
		trace.WithAttributes(
			attribute.String("object_key", key),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	p, err := ls.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(ls.root, ".upload-*")
	if err != nil {
		span.RecordError(err)
		return unavailable("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		span.RecordError(err)
		return unavailable("write file", err)
	}
	if err := tmp.Close(); err != nil {
		span.RecordError(err)
		return unavailable("close file", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		span.RecordError(err)
		return unavailable("rename file", err)
	}
	return nil
}

// Get reads the object; common.ErrNotFound when absent
func (ls *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := tracer.Start(ctx, "localfs.get",
		trace.WithAttributes(attribute.String("object_key", key)),
	)
	defer span.End()

	p, err := ls.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, common.ErrNotFound
	} else if err != nil {
		span.RecordError(err)
		return nil, unavailable("read file", err)
	}
	return data, nil
}

// Exists reports whether an object is stored under key
func (ls *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	p, err := ls.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, unavailable("stat file", err)
	}
	return true, nil
}
