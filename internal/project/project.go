// Package project locates project roots and the codex-mem data directory.
package project

import (
	"os"
	"path/filepath"
)

// DefaultRootMarkers mark a directory as a project root.
var DefaultRootMarkers = []string{".git"}

const (
	dbFile    = "mem.sqlite3"
	spoolFile = "notify_spool.jsonl"
	logFile   = "codex-mem.log"
)

// DetectRoot walks up from cwd and returns the first directory containing
// any of the markers. It returns "" when no ancestor qualifies.
func DetectRoot(cwd string, markers []string) string {
	if cwd == "" || len(markers) == 0 {
		return ""
	}
	dir, err := filepath.Abs(cwd)
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	for {
		for _, m := range markers {
			if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Paths is the on-disk layout under the base directory.
type Paths struct {
	Base  string `json:"base"`
	DB    string `json:"db"`
	Spool string `json:"spool"`
	Log   string `json:"log"`
}

// CodexHome returns $CODEX_HOME, or ~/.codex.
func CodexHome() string {
	if v := os.Getenv("CODEX_HOME"); v != "" {
		return expandHome(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codex"
	}
	return filepath.Join(home, ".codex")
}

// BaseDir returns $CODEX_MEM_HOME, or the mem directory under CodexHome.
func BaseDir() string {
	if v := os.Getenv("CODEX_MEM_HOME"); v != "" {
		return expandHome(v)
	}
	return filepath.Join(CodexHome(), "mem")
}

// Layout returns the file layout rooted at base. An empty base uses BaseDir.
func Layout(base string) Paths {
	if base == "" {
		base = BaseDir()
	}
	return Paths{
		Base:  base,
		DB:    filepath.Join(base, dbFile),
		Spool: filepath.Join(base, spoolFile),
		Log:   filepath.Join(base, logFile),
	}
}

// Ensure creates the base directory.
func (p Paths) Ensure() error {
	return os.MkdirAll(p.Base, 0o755)
}

func expandHome(p string) string {
	if p == "~" || len(p) > 1 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
