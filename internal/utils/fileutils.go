package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type FileUtils struct{}

func NewFileUtils() *FileUtils {
	return &FileUtils{}
}

func (fu *FileUtils) EnsureDirectory(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, 0755)
	}
	return nil
}

// IsPackageFile reports whether the name carries a .vsix or .vsixpackage extension.
func (fu *FileUtils) IsPackageFile(filePath string) bool {
	lower := strings.ToLower(filePath)
	return strings.HasSuffix(lower, ".vsix") || strings.HasSuffix(lower, ".vsixpackage")
}

func (fu *FileUtils) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

// UniquePath returns dir/name, or dir/name-N.ext for the first N that is free.
func (fu *FileUtils) UniquePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if !fu.FileExists(candidate) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
		if !fu.FileExists(candidate) {
			return candidate
		}
	}
}
