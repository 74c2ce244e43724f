package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giygas/regimen-forecast/config"
)

func TestRotatingLoggerWritesCurrentWeek(t *testing.T) {
	dir := t.TempDir()

	rl, err := NewRotatingLogger(dir, 4, 1024*1024)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	if _, err := rl.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	path := filepath.Join(dir, fileName(weekKey(time.Now()), 0))
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file %s: %v", path, err)
	}
	if !strings.Contains(string(content), "first line") {
		t.Errorf("Expected log content, got %q", content)
	}
}

func TestRotatingLoggerSizeRotation(t *testing.T) {
	dir := t.TempDir()

	rl, err := NewRotatingLogger(dir, 4, 64)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for range 3 {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	week := weekKey(time.Now())
	for _, seq := range []int{0, 1, 2} {
		if _, err := os.Stat(filepath.Join(dir, fileName(week, seq))); err != nil {
			t.Errorf("Expected file for sequence %d: %v", seq, err)
		}
	}
}

func TestRotatingLoggerResumesExistingFile(t *testing.T) {
	dir := t.TempDir()
	week := weekKey(time.Now())

	full := filepath.Join(dir, fileName(week, 0))
	if err := os.WriteFile(full, bytes.Repeat([]byte("y"), 128), 0644); err != nil {
		t.Fatal(err)
	}

	rl, err := NewRotatingLogger(dir, 4, 100)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	if _, err := rl.Write([]byte("next\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, fileName(week, 1)))
	if err != nil {
		t.Fatalf("Expected numbered file: %v", err)
	}
	if string(content) != "next\n" {
		t.Errorf("Expected write in numbered file, got %q", content)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()

	rl, err := NewRotatingLogger(dir, 1, 1024)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	old := filepath.Join(dir, "forecast-2020-W01.log")
	other := filepath.Join(dir, "unrelated.txt")
	for _, p := range []string{old, other} {
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-30 * 24 * time.Hour)
		if err := os.Chtimes(p, past, past); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := rl.cleanupOldLogs(time.Now())
	if err != nil {
		t.Fatalf("cleanupOldLogs failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("Expected old log to be removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("Expected unrelated file to be kept")
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	rl, err := NewRotatingLogger(t.TempDir(), 4, 1024*1024)
	if err != nil {
		t.Fatalf("NewRotatingLogger failed: %v", err)
	}
	defer rl.Close()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 10 {
				if _, err := rl.Write([]byte("concurrent\n")); err != nil {
					t.Errorf("goroutine %d: %v", i, err)
				}
			}
		}(i)
	}
	wg.Wait()

	rl.mu.Lock()
	size := rl.currentSize
	rl.mu.Unlock()
	if size != int64(200*len("concurrent\n")) {
		t.Errorf("Expected %d bytes written, got %d", 200*len("concurrent\n"), size)
	}
}

func TestInitLoggerWithOptions(t *testing.T) {
	var console bytes.Buffer
	dir := t.TempDir()

	service := InitLoggerWithOptions(Options{
		LogDir:  dir,
		Env:     config.EnvDevelopment,
		Level:   "debug",
		Console: &console,
	})
	defer service.Close()

	Info("allocation finished", "leaves", 3)
	Debug("debug detail")

	if !strings.Contains(console.String(), "allocation finished") {
		t.Errorf("Expected console output, got %q", console.String())
	}

	content, err := os.ReadFile(filepath.Join(dir, fileName(weekKey(time.Now()), 0)))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"allocation finished"`) {
		t.Errorf("Expected JSON record in file, got %q", content)
	}
}

func TestPackageFunctionsWithoutInit(t *testing.T) {
	mu.Lock()
	saved := DefaultLoggingService
	DefaultLoggingService = nil
	mu.Unlock()
	defer func() {
		mu.Lock()
		DefaultLoggingService = saved
		mu.Unlock()
	}()

	// Must not panic when uninitialised
	Info("info")
	Warn("warn")
	Error("error")
	Debug("debug")
}
