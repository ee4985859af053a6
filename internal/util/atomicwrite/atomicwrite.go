// Package atomicwrite escribe archivos sin dejar contenido parcial visible:
// primero un temporal en el mismo directorio (write → fsync → close → chmod) y
// después rename o link sobre el destino.
package atomicwrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// writeTemp deja data en un temporal junto a path y devuelve su ruta.
func writeTemp(path string, data []byte, perm fs.FileMode) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("write temp: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("fsync temp: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return fail(fmt.Errorf("close temp: %w", err))
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fail(fmt.Errorf("chmod temp: %w", err))
	}
	return tmpPath, nil
}

// WriteFile reemplaza path de forma atómica. El directorio debe existir.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// WriteNew crea path solo si todavía no existe; si existe devuelve un error
// que cumple errors.Is(err, fs.ErrExist) y no toca el archivo.
// El hard link falla con EEXIST aunque dos procesos compitan por el mismo path.
func WriteNew(path string, data []byte, perm fs.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), fs.ErrExist)
		}
		return fmt.Errorf("link: %w", err)
	}
	return nil
}
