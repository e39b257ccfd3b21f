//nolint:revive // var-naming - package name is meaningful
package util

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.txt")

	WriteFile(t, path, "test content")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("WriteFile() did not create %s: %v", path, err)
	}
	AssertEqual(t, ReadFile(t, path), "test content")
}

func TestWriteTreeAndListTree(t *testing.T) {
	root := t.TempDir()
	WriteTree(t, root, map[string]string{
		"readme.md":         "# hi",
		"guides/setup.md":   "setup",
		"guides/deep/a.txt": "a",
	})

	got := ListTree(t, root)
	want := []string{"guides/deep/a.txt", "guides/setup.md", "readme.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListTree() = %v, want %v", got, want)
	}
	AssertEqual(t, ReadFile(t, filepath.Join(root, "guides", "setup.md")), "setup")
}

func TestSetHome(t *testing.T) {
	dir := SetHome(t)

	AssertEqual(t, DocsyncConfigPath(), dir)
	AssertEqual(t, CachePath(), filepath.Join(dir, "cache.db"))
}

func TestAssertions(t *testing.T) {
	AssertNoError(t, nil)
	AssertEqual(t, "hello", "hello")
	AssertEqual(t, 42, 42)
	AssertContains(t, "conflict detected", "detected")
	AssertErrorContains(t, errors.New("write_external /a.md failed: boom"), "boom")
}
