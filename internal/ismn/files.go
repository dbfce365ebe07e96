// Package ismn discovers, filters and parses International Soil Moisture
// Network station files in the "header + values" .stm format.
package ismn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
)

// =============================================================================
// Discovery
// =============================================================================

// IsSoilMoistureFile reports whether a file name follows the ISMN soil
// moisture naming scheme (*_sm_*.stm, optionally gzip-compressed).
func IsSoilMoistureFile(name string) bool {
	name = strings.TrimSuffix(name, ".gz")
	return strings.Contains(name, "_sm_") && strings.HasSuffix(name, ".stm")
}

// FindFiles walks root recursively and returns all soil moisture files, sorted.
func FindFiles(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && IsSoilMoistureFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// =============================================================================
// Depth filter
// =============================================================================

// DepthMatcher returns a pattern matching header lines whose sensor depth
// range starts at depth, written exactly as it appears in the header
// (e.g. "0.05" matches "... 0.050000 0.050000 ...").
func DepthMatcher(depth string) *regexp.Regexp {
	return regexp.MustCompile(`^.+\d{1,2}\.\d+\s+` + regexp.QuoteMeta(depth))
}

// FirstLine returns the header line of a station file.
func FirstLine(path string) (string, error) {
	r, closeFn, err := open(path)
	if err != nil {
		return "", err
	}
	defer closeFn()

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// CopyFiltered copies every file whose header matches depth into destDir and
// returns the copied paths. Files that cannot be read are logged and skipped.
func CopyFiltered(ctx context.Context, files []string, depth, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	re := DepthMatcher(depth)
	var copied []string
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		header, err := FirstLine(src)
		if err != nil {
			log.Warnw("skipping unreadable file", "path", src, "error", err)
			continue
		}
		if !re.MatchString(header) {
			continue
		}

		dst := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
