package export_test

import (
	"bytes"
	"go/format"
	"os"
	"path/filepath"
	"testing"
)

func TestSourcesAreGofmtClean(t *testing.T) {
	t.Parallel()

	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no sources found")
	}
	for _, name := range files {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			src, err := os.ReadFile(name)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			got, err := format.Source(src)
			if err != nil {
				t.Fatalf("format: %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Fatalf("%s is not gofmt formatted", name)
			}
		})
	}
}
