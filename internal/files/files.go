// Package files implements small file system helpers.
package files

import (
	"os"
	"path/filepath"
	"strings"
)

// Exists returns true if the path exists, be it a file or a directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReplaceTildeInDir replaces a leading "~" by the user's home directory.
func ReplaceTildeInDir(dir string) string {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dir
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~"))
}
