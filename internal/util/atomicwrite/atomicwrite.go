// Package atomicwrite escribe archivos de forma atómica (tmp + fsync + rename),
// de modo que un lector nunca ve un archivo a medio escribir.
package atomicwrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteFile escribe data en path reemplazando el contenido previo de forma atómica.
// Si el rename falla (Windows con destino bloqueado) reintenta con remove+rename;
// hasta ese punto el archivo viejo queda intacto.
func WriteFile(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if rerr := os.Rename(tmpPath, path); rerr != nil {
		_ = os.Remove(path)
		if rerr2 := os.Rename(tmpPath, path); rerr2 != nil {
			err = fmt.Errorf("rename: %v (after remove: %v)", rerr, rerr2)
			return err
		}
	}
	return nil
}

// WriteYAML serializa v como YAML y lo escribe con WriteFile.
func WriteYAML(path string, v any, perm fs.FileMode) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return WriteFile(path, b, perm)
}
