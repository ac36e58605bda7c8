package passphrase

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("REWARD_TEST_PASS", "correct horse")
	src := NewSource("REWARD_TEST_PASS", "")
	got, err := src.Get()
	if err != nil || got != "correct horse" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	t.Setenv("REWARD_TEST_PASS", "changed")
	if again, _ := src.Get(); again != "correct horse" {
		t.Fatalf("passphrase should be cached, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("REWARD_TEST_PASS", "   ")
	if _, err := NewSource("REWARD_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected blank passphrase error")
	}
}

func TestSourceReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass.txt")
	if err := os.WriteFile(path, []byte("battery staple\r\nignored\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("REWARD_TEST_PASS", "from env")
	t.Setenv("REWARD_TEST_PASS"+FileSuffix, path)

	got, err := NewSource("REWARD_TEST_PASS", "").Get()
	if err != nil || got != "battery staple" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("REWARD_TEST_PASS"+FileSuffix, empty)
	if _, err := NewSource("REWARD_TEST_PASS", "").Get(); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty file error, got %v", err)
	}

	t.Setenv("REWARD_TEST_PASS"+FileSuffix, filepath.Join(dir, "missing.txt"))
	if _, err := NewSource("REWARD_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer devNull.Close()
	src := NewSource("REWARD_TEST_PASS_UNSET", "")
	src.tty = devNull
	_, err = src.Get()
	if err == nil || !strings.Contains(err.Error(), "REWARD_TEST_PASS_UNSET_FILE") {
		t.Fatalf("expected hint naming the file variable, got %v", err)
	}
}
