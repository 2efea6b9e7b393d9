package system

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// FileProbe answers metadata questions about configured paths.
type FileProbe struct {
	Fs   afero.Fs
	Home string
}

func NewFileProbe(fs afero.Fs) FileProbe {
	home, _ := os.UserHomeDir()
	return FileProbe{Fs: fs, Home: home}
}

func (p FileProbe) fs() afero.Fs {
	if p.Fs == nil {
		return afero.NewOsFs()
	}
	return p.Fs
}

func (p FileProbe) Abs(path string) string { return AbsolutePath(path, p.Home) }

func (p FileProbe) ModTime(path string) (time.Time, error) {
	st, err := p.fs().Stat(p.Abs(path))
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}

func (p FileProbe) Exists(path string) bool {
	st, err := p.fs().Stat(p.Abs(path))
	return err == nil && !st.IsDir()
}

// IsVideo sniffs the file header. Any failure reads as "not a video".
func (p FileProbe) IsVideo(path string) bool {
	f, err := p.fs().Open(p.Abs(path))
	if err != nil {
		return false
	}
	defer f.Close()
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return true
		}
	}
	return false
}

// AbsolutePath expands a leading ~ against home and cleans the result.
func AbsolutePath(path, home string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") && home != "" {
		path = filepath.Join(home, path[2:])
	}
	return filepath.Clean(path)
}
