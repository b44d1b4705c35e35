// Package discovery finds video files to process when the input path is a
// directory.
package discovery

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// videoExtensions are the containers drapto will pick up from a directory.
var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".webm": true,
	".avi":  true,
	".mov":  true,
	".m4v":  true,
	".ts":   true,
}

// IsVideoFile reports whether the path has a recognized video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// FindVideoFiles walks the directory and returns video files in sorted
// order. Hidden files and directories are skipped.
func FindVideoFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsVideoFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
