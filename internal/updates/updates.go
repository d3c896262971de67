// Package updates discovers pending update packages. Applying them is the
// installer's job, not the boot controller's; the pipeline only reports what
// is waiting.
package updates

import (
	"path/filepath"
	"sort"
)

// DefaultGlob matches the update package naming scheme.
const DefaultGlob = "*.pkg.tgz"

// Scan returns the update packages under dir matching glob, sorted by name.
// An empty dir means updates are not configured and yields no matches.
func Scan(dir, glob string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if glob == "" {
		glob = DefaultGlob
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
