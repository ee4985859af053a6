package keys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dropDatabas3/ofbmock/internal/util/atomicwrite"
)

// FileStore lee claves de un directorio: un archivo <kid>.json por clave.
// Garantías:
// - Escritura atómica y exclusiva: un kid existente nunca se pisa
// - Permisos 0600 en los archivos de clave
// - Sin cache propio: cada lectura va a disco (envolver con CachedProvider)
type FileStore struct {
	dir string

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// NewFileStore crea el directorio si no existe.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keys directory: %w", err)
	}
	return &FileStore{dir: filepath.Clean(dir), Now: time.Now}, nil
}

func (s *FileStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *FileStore) pathFor(kid string) (string, error) {
	if kid == "" || kid != filepath.Base(kid) || strings.HasPrefix(kid, ".") {
		return "", fmt.Errorf("keys: invalid kid %q for file store", kid)
	}
	return filepath.Join(s.dir, kid+".json"), nil
}

func (s *FileStore) load() ([]SigningKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make([]SigningKey, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		k, err := unmarshalRecord(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *FileStore) ActiveKey(ctx context.Context) (*SigningKey, error) {
	list, err := s.load()
	if err != nil {
		return nil, err
	}
	return selectActive(list, s.now())
}

func (s *FileStore) List(ctx context.Context) ([]SigningKey, error) {
	list, err := s.load()
	if err != nil {
		return nil, err
	}
	return publishable(list, s.now()), nil
}

func (s *FileStore) Insert(ctx context.Context, k *SigningKey) error {
	path, err := s.pathFor(k.KID)
	if err != nil {
		return err
	}
	data, err := marshalRecord(k)
	if err != nil {
		return err
	}
	if err := atomicwrite.WriteNew(path, data, 0o600); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrKeyExists
		}
		return err
	}
	return nil
}
