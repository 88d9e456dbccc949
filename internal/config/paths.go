package config

import (
	"os"
	"path/filepath"
)

// homeEnv relocates every file mmassist keeps on disk.
const homeEnv = "MMASSIST_HOME"

// Paths is the on-disk layout under the mmassist home directory.
type Paths struct {
	Base    string // ~/.mmassist
	Config  string // config.yaml
	Logs    string // logs/
	Data    string // data/
	Journal string // data/journal.db, the run journal
}

// ResolvePaths lays out the home directory: $MMASSIST_HOME when set,
// ~/.mmassist otherwise. Nothing is created.
func ResolvePaths() (Paths, error) {
	base := os.Getenv(homeEnv)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".mmassist")
	}
	return layout(base), nil
}

func layout(base string) Paths {
	data := filepath.Join(base, "data")
	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Logs:    filepath.Join(base, "logs"),
		Data:    data,
		Journal: filepath.Join(data, "journal.db"),
	}
}

// EnsureDirs creates the home, logs and data directories, owner-only.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Base, p.Logs, p.Data} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
