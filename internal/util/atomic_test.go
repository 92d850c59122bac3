package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

func TestAtomicWriteJSON(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "areas.geojson")

	if err := AtomicWriteJSON(testFile, map[string]string{"key": "bi g q"}); err != nil {
		t.Fatalf("AtomicWriteJSON error: %v", err)
	}
	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(content) != "{\n  \"key\": \"bi g q\"\n}\n" {
		t.Fatalf("Unexpected content: %s", content)
	}
	assertNoTemp(t, tmpDir)
}

func TestAtomicWriteJSONUnmarshallable(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "bad.json")
	if err := AtomicWriteJSON(testFile, make(chan int)); err == nil {
		t.Fatal("Expected error for unmarshallable value")
	}
	if _, err := os.Stat(testFile); !os.IsNotExist(err) {
		t.Fatal("File should not exist after marshal error")
	}
	assertNoTemp(t, tmpDir)
}

func TestAtomicWriteOverwrite(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "dr-test.txt")
	for _, s := range []string{"first", "second"} {
		if err := AtomicWriteFile(testFile, []byte(s), 0644); err != nil {
			t.Fatalf("AtomicWriteFile error: %v", err)
		}
	}
	content, _ := os.ReadFile(testFile)
	if string(content) != "second" {
		t.Errorf("Expected second, got %q", content)
	}
}

func TestAtomicWriteFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not reliable on Windows")
	}
	testFile := filepath.Join(t.TempDir(), "perm.txt")
	if err := AtomicWriteFile(testFile, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestAtomicWriteFileReadOnlyDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("chmod-based read-only directories are not reliable on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	roDir := filepath.Join(t.TempDir(), "readonly")
	if err := os.Mkdir(roDir, 0555); err != nil {
		t.Fatalf("Failed to create readonly dir: %v", err)
	}
	defer os.Chmod(roDir, 0755)

	testFile := filepath.Join(roDir, "test.txt")
	if err := AtomicWriteFile(testFile, []byte("test"), 0644); err == nil {
		t.Fatal("Expected permission error")
	}
	if _, err := os.Stat(testFile); !os.IsNotExist(err) {
		t.Fatal("File should not exist after permission error")
	}
}

func TestAtomicWriteFileConcurrent(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "concurrent.txt")

	const numWriters = 10
	var wg sync.WaitGroup
	errs := make([]error, numWriters)
	for i := range numWriters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = AtomicWriteFile(testFile, []byte(string(rune('A'+i))), 0644)
		}()
	}
	wg.Wait()

	if runtime.GOOS != "windows" {
		for i, err := range errs {
			if err != nil {
				t.Errorf("writer %d: %v", i, err)
			}
		}
	}
	content, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if len(content) != 1 {
		t.Errorf("Expected single character, got %q", content)
	}
	assertNoTemp(t, tmpDir)
}

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "iso.txt")

	err := AtomicWrite(testFile, 0644, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "T(°C) p(kbar) g(mode)")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	content, _ := os.ReadFile(testFile)
	if string(content) != "T(°C) p(kbar) g(mode)\n" {
		t.Errorf("content = %q", content)
	}

	boom := errors.New("boom")
	err = AtomicWrite(testFile, 0644, func(w io.Writer) error {
		fmt.Fprint(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("AtomicWrite() error = %v, want boom", err)
	}
	content, _ = os.ReadFile(testFile)
	if string(content) != "T(°C) p(kbar) g(mode)\n" {
		t.Errorf("failed write changed the file: %q", content)
	}
	assertNoTemp(t, tmpDir)
}
