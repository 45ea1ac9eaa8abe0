package ziparchive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeArchive(t *testing.T, comment string, members map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if comment != "" {
		if err := w.SetComment(comment); err != nil {
			t.Fatalf("SetComment: %v", err)
		}
	}
	for name, data := range members {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			t.Fatalf("CreateHeader(%q): %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("Write(%q): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadMember(t *testing.T) {
	want := []byte("stored member bytes, kept verbatim")
	path := writeArchive(t, "", map[string][]byte{
		"file":       want,
		"other/file": []byte("something else entirely"),
	})

	data, size, err := ReadMember(path, "file", 1<<20)
	if err != nil {
		t.Fatalf("ReadMember: %v", err)
	}
	if size != len(want) {
		t.Errorf("size = %d, want %d", size, len(want))
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
}

func TestReadMemberLimit(t *testing.T) {
	want := []byte("0123456789abcdef")
	path := writeArchive(t, "", map[string][]byte{"file": want})

	data, size, err := ReadMember(path, "file", 4)
	if err != nil {
		t.Fatalf("ReadMember: %v", err)
	}
	if size != len(want) {
		t.Errorf("size = %d, want %d", size, len(want))
	}
	if !bytes.Equal(data, want[:4]) {
		t.Errorf("data = %q, want %q", data, want[:4])
	}
}

func TestReadMemberWithArchiveComment(t *testing.T) {
	want := []byte("comment should not break the EOCD scan")
	path := writeArchive(t, "a comment, possibly containing PK\x05\x06 lookalikes", map[string][]byte{"file": want})

	data, _, err := ReadMember(path, "file", 1<<20)
	if err != nil {
		t.Fatalf("ReadMember: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}
}

func TestReadMemberNotFound(t *testing.T) {
	path := writeArchive(t, "", map[string][]byte{"file": []byte("x")})

	if _, _, err := ReadMember(path, "missing", 1<<20); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("err = %v, want ErrMemberNotFound", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.bin")
	want := []byte("raw plaintext file")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := LoadFile(path, 1<<20)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Errorf("data = %q, want %q", data, want)
	}

	head, err := LoadFile(path, 3)
	if err != nil {
		t.Fatalf("LoadFile with limit: %v", err)
	}
	if !bytes.Equal(head, want[:3]) {
		t.Errorf("limited data = %q, want %q", head, want[:3])
	}
}
