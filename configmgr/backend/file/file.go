// Package file implements configmgr/backend.Backend over a flat
// name=value text file, ported from
// _examples/original_source/files/conffile.c: one directive per line,
// '#'-prefixed or blank lines ignored, "\#" escapes a literal '#', per
// spec.md §6 "Config file format".
package file

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jiufeng-go/jiufeng/configmgr/backend"
)

const maxLineLen = 4096

// Backend persists entries to a flat file at a fixed path.
type Backend struct {
	path string
}

// New constructs a file Backend. Open must still be called before use.
func New() *Backend { return &Backend{} }

// Open records the file path to read/write. The file need not exist yet
// — Load returns an empty map and Flush creates it.
func (b *Backend) Open(cfg backend.Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("file backend: empty path")
	}
	b.path = cfg.Path
	return nil
}

// Close is a no-op; the file is opened and closed per Flush/Load call.
func (b *Backend) Close() error { return nil }

// Load parses every name=value directive in the file, skipping comments
// and blank lines per conffile.c's _readLineFromFile/_getValueStringByTag
// shape. A missing file is treated as empty (no entries persisted yet).
func (b *Backend) Load() (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file backend: open %s: %w", b.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineLen), maxLineLen)
	for scanner.Scan() {
		line := unescapeComment(stripComment(scanner.Text()))
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		name := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if name != "" {
			entries[name] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file backend: read %s: %w", b.path, err)
	}
	return entries, nil
}

// Flush rewrites the whole file with entries, one name=value per line,
// sorted for a stable diff-friendly output.
func (b *Backend) Flush(entries map[string]string) error {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(escapeComment(entries[name]))
		sb.WriteByte('\n')
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("file backend: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("file backend: rename %s: %w", tmp, err)
	}
	return nil
}

// stripComment trims everything from an unescaped '#' to end of line,
// mirroring conffile.c's inline comment scan.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if i > 0 && line[i-1] == '\\' {
			continue
		}
		return line[:i]
	}
	return line
}

func unescapeComment(line string) string {
	return strings.ReplaceAll(line, `\#`, "#")
}

func escapeComment(value string) string {
	return strings.ReplaceAll(value, "#", `\#`)
}
