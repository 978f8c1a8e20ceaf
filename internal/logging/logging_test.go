package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenWritesJSONToDatedFile(t *testing.T) {
	dir := t.TempDir()

	log, closer, err := Open(dir, false)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	log.Info("hello")
	closer()

	name := "concord_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file missing entry, got %q", data)
	}
}

func TestDebugLevelGated(t *testing.T) {
	dir := t.TempDir()

	log, closer, err := Open(dir, false)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	log.Debug("quiet")
	closer()

	name := "concord_" + time.Now().Format("2006-01-02") + ".log"
	data, _ := os.ReadFile(filepath.Join(dir, name))
	if strings.Contains(string(data), "quiet") {
		t.Error("debug entry written with debug disabled")
	}
}
