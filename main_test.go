package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	const key = "REGIMEN_FORECAST_LOADENV_TEST"
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	t.Run("env file in working directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=from-dotenv\n"), 0o644); err != nil {
			t.Fatalf("Failed to write .env: %v", err)
		}
		t.Chdir(dir)

		dotenvErr, err := loadEnv()
		if err != nil || dotenvErr != nil {
			t.Fatalf("Expected no errors, got dotenv=%v err=%v", dotenvErr, err)
		}
		if got := os.Getenv(key); got != "from-dotenv" {
			t.Errorf("Expected value from .env, got %q", got)
		}
	})

	t.Run("missing env file is reported but not fatal", func(t *testing.T) {
		t.Chdir(t.TempDir())

		dotenvErr, err := loadEnv()
		if err != nil {
			t.Fatalf("Missing .env should not be fatal: %v", err)
		}
		if dotenvErr == nil {
			t.Error("Expected the .env load error to be reported")
		}

		ex, _ := os.Executable()
		wd, _ := os.Getwd()
		if resolved, _ := filepath.EvalSymlinks(filepath.Dir(ex)); wd != filepath.Dir(ex) && wd != resolved {
			t.Errorf("Expected fallback to executable directory %s, got %s", filepath.Dir(ex), wd)
		}
	})
}
