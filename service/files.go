package service

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.WithMessagef(err, "fail to create %s", filepath.Dir(path))
	}
	if err := ioutil.WriteFile(path, data, perm); err != nil {
		return errors.WithMessagef(err, "fail to write %s", path)
	}
	return nil
}

// copyFile creates the parent directories of dst and keeps the mode of src.
func copyFile(src, dst string) error {
	if err := copy.Copy(src, dst); err != nil {
		return errors.WithMessagef(err, "fail to copy %s", src)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
