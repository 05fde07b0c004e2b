// Package storage guarda los adjuntos de los posts y devuelve una referencia estable.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// Sink almacena blobs binarios y los identifica por una referencia (URL pública).
type Sink interface {
	Put(ctx context.Context, key, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

var (
	ErrEmptyKey    = errors.New("attachment key is required")
	ErrUnknownRef  = errors.New("attachment reference not managed by this sink")
	unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// LocalSink escribe los adjuntos en disco bajo dir/<key>/<filename> y los expone bajo baseURL.
type LocalSink struct {
	dir     string
	baseURL string
}

func NewLocalSink(dir, baseURL string) (*LocalSink, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("attachment dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &LocalSink{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir devuelve el directorio raíz, usado para servir los archivos.
func (s *LocalSink) Dir() string {
	return s.dir
}

func (s *LocalSink) Put(ctx context.Context, key, filename string, r io.Reader) (string, error) {
	key = sanitize(key)
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := sanitize(filepath.Base(filename))
	if name == "" || name == "." {
		name = "attachment"
	}

	folder := filepath.Join(s.dir, key)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(folder, name)

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.RemoveAll(folder)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.RemoveAll(folder)
		return "", err
	}

	return s.baseURL + "/" + path.Join(key, name), nil
}

// Delete borra el blob referenciado y su carpeta. Borrar algo inexistente no es error.
func (s *LocalSink) Delete(_ context.Context, ref string) error {
	rel, ok := strings.CutPrefix(ref, s.baseURL+"/")
	if !ok {
		return ErrUnknownRef
	}
	key, _, found := strings.Cut(rel, "/")
	if !found || sanitize(key) != key || key == "" {
		return ErrUnknownRef
	}
	err := os.RemoveAll(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func sanitize(name string) string {
	name = unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.Trim(name, "._")
}
