package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/nacplan/pkg/cache"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".cache", appName)
	if dir != expected {
		t.Errorf("cacheDir() = %q, want %q", dir, expected)
	}
}

func TestCacheDirXDG(t *testing.T) {
	customCache := filepath.Join(t.TempDir(), "custom-cache")
	t.Setenv("XDG_CACHE_HOME", customCache)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	expected := filepath.Join(customCache, appName)
	if dir != expected {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, expected)
	}
}

func TestPlansDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")

	dir, err := plansDir()
	if err != nil {
		t.Fatalf("plansDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(dir, home) {
		t.Errorf("plansDir() = %q, should be under home %q", dir, home)
	}
	if want := filepath.Join(".config", appName, "plans"); !strings.HasSuffix(dir, want) {
		t.Errorf("plansDir() = %q, should end with %q", dir, want)
	}
}

func TestPlansDirXDG(t *testing.T) {
	config := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", config)

	dir, err := plansDir()
	if err != nil {
		t.Fatalf("plansDir() error: %v", err)
	}
	if want := filepath.Join(config, appName, "plans"); dir != want {
		t.Errorf("plansDir() = %q, want %q", dir, want)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"ab/one.json", "ab/two.json", "cd/three.json", "top.json"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	count, err := clearDir(dir)
	if err != nil {
		t.Fatalf("clearDir() error: %v", err)
	}
	if count != 4 {
		t.Errorf("cleared %d entries, want 4", count)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cache dir should survive: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir still has %d entries", len(entries))
	}
}

func TestClearDirMissing(t *testing.T) {
	count, err := clearDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil || count != 0 {
		t.Errorf("clearDir(missing) = %d, %v; want 0, nil", count, err)
	}
}

func TestPruneDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "live", []byte("plan"), time.Hour); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "zz", "bad.json")
	if err := os.MkdirAll(filepath.Dir(bad), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	count, err := pruneDir(ctx, dir)
	if err != nil || count != 1 {
		t.Fatalf("pruneDir() = %d, %v; want 1, nil", count, err)
	}
	if _, hit, _ := c.Get(ctx, "live"); !hit {
		t.Error("live entry should survive prune")
	}
}

func TestPruneDirMissing(t *testing.T) {
	count, err := pruneDir(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if err != nil || count != 0 {
		t.Errorf("pruneDir(missing) = %d, %v; want 0, nil", count, err)
	}
}
