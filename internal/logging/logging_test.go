package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer) *FileLogger {
	l := NewFileLogger(buf)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestFileLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf)
	l.Warnf("image", "asset %s missing", "image:/a.png")

	want := "2024-05-01T12:00:00Z [WARN] image: asset image:/a.png missing\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestFilter_Levels(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		quiet   bool
		want    []string
	}{
		{"default", false, false, []string{"[INFO]", "[WARN]", "[ERROR]"}},
		{"verbose", true, false, []string{"[TRACE]", "[INFO]", "[WARN]", "[ERROR]"}},
		{"quiet", false, true, nil},
		{"quiet wins", true, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewFilter(fixedLogger(&buf), tt.verbose, tt.quiet)
			f.Tracef("c", "t")
			f.Infof("c", "i")
			f.Warnf("c", "w")
			f.Errorf("c", "e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if buf.Len() == 0 {
				lines = nil
			}
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines, want %d: %q", len(lines), len(tt.want), buf.String())
			}
			for i, tag := range tt.want {
				if !strings.Contains(lines[i], tag) {
					t.Errorf("line %d = %q, want tag %s", i, lines[i], tag)
				}
			}
		})
	}
}

func TestMulti_Broadcast(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{fixedLogger(&a), fixedLogger(&b)}
	m.Errorf("gatherer", "decode failed")
	if a.String() != b.String() || a.Len() == 0 {
		t.Errorf("outputs differ: %q vs %q", a.String(), b.String())
	}
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockscreen.log")
	log, closeLog, err := Setup(path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	log.Tracef("timer", "tick")
	log.Infof("app", "started")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "[TRACE] timer: tick") || !strings.Contains(got, "[INFO] app: started") {
		t.Fatalf("log file = %q", got)
	}
}

func TestSetup_Errors(t *testing.T) {
	log, closeLog, err := Setup(filepath.Join(t.TempDir(), "missing", "x.log"), false, false)
	if err == nil {
		t.Fatal("Setup succeeded for a missing directory")
	}
	if log == nil || closeLog() != nil {
		t.Fatal("Setup must still return a usable logger")
	}
}
