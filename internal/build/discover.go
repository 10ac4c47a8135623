package build

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Discover lists every buildable file under fs in path order. Entries whose
// name starts with "." or "_" are skipped, as is every directory in skipDirs
// (slash paths relative to the root of fs, such as layouts or a nested
// output tree).
func Discover(fs billy.Filesystem, skipDirs ...string) ([]string, error) {
	skip := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			skip[path.Clean(filepath.ToSlash(dir))] = true
		}
	}
	var paths []string
	err := util.Walk(fs, ".", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(p)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if hidden(info.Name()) || skip[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(info.Name()) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build: discover: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}
