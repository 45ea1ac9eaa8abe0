// Package ziparchive locates and loads the stored bytes of ZIP archive
// members without interpreting them. The attack only needs the raw
// (possibly compressed, possibly encrypted) entry streams, so this is a
// thin central-directory walk rather than a full ZIP reader.
package ziparchive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	eocdSignature = 0x06054b50
	// An EOCD record is 22 bytes and may be followed by a comment of at
	// most 65535 bytes, which bounds the backward scan.
	eocdMinSize     = 22
	maxCommentSize  = 0xffff
	centralDirEntry = 46 // fixed part of a central directory entry
)

// ErrMemberNotFound is returned when the named member is not present in
// the archive's central directory.
var ErrMemberNotFound = errors.New("member not found in archive")

// LoadFile returns up to limit bytes of a plain file.
func LoadFile(path string, limit int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ReadMember returns up to limit bytes of the stored data of the named
// member, read straight from the archive without decompression or
// decryption. The returned size is the member's full compressed size,
// which may exceed the length of the returned bytes when limit cuts the
// read short.
func ReadMember(archive, member string, limit int) (data []byte, size int, err error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	entry, err := findEntry(f, member)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", archive, err)
	}

	dataOffset, err := entryDataOffset(f, entry)
	if err != nil {
		return nil, 0, err
	}

	n := int(entry.compressedSize)
	if n > limit {
		n = limit
	}
	data = make([]byte, n)
	if _, err := f.ReadAt(data, dataOffset); err != nil {
		return nil, 0, fmt.Errorf("read member data: %w", err)
	}
	return data, int(entry.compressedSize), nil
}

type centralEntry struct {
	name           string
	compressedSize uint32
	headerOffset   uint32
}

// findEOCD scans backward from the end of the file for the end of
// central directory record and returns its offset.
func findEOCD(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Size() < eocdMinSize {
		return 0, errors.New("file is too small to be a ZIP archive")
	}

	scan := int64(eocdMinSize + maxCommentSize)
	if scan > fi.Size() {
		scan = fi.Size()
	}
	tail := make([]byte, scan)
	if _, err := f.ReadAt(tail, fi.Size()-scan); err != nil {
		return 0, fmt.Errorf("read archive tail: %w", err)
	}

	for i := len(tail) - eocdMinSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:]) != eocdSignature {
			continue
		}
		// Guard against signature lookalikes inside the archive comment:
		// a real record's comment length reaches exactly to end of file.
		commentLen := int(binary.LittleEndian.Uint16(tail[i+20:]))
		if i+eocdMinSize+commentLen == len(tail) {
			return fi.Size() - scan + int64(i), nil
		}
	}
	return 0, errors.New("end of central directory not found, not a ZIP archive")
}

// findEntry walks the central directory for the named member.
func findEntry(f *os.File, member string) (*centralEntry, error) {
	eocdOffset, err := findEOCD(f)
	if err != nil {
		return nil, err
	}

	var eocd [eocdMinSize]byte
	if _, err := f.ReadAt(eocd[:], eocdOffset); err != nil {
		return nil, fmt.Errorf("read end of central directory: %w", err)
	}
	cdOffset := int64(binary.LittleEndian.Uint32(eocd[16:]))

	pos := cdOffset
	for pos < eocdOffset {
		var fixed [centralDirEntry]byte
		if _, err := f.ReadAt(fixed[:], pos); err != nil {
			return nil, fmt.Errorf("read central directory entry: %w", err)
		}

		compressedSize := binary.LittleEndian.Uint32(fixed[20:])
		nameSize := int64(binary.LittleEndian.Uint16(fixed[28:]))
		extraSize := int64(binary.LittleEndian.Uint16(fixed[30:]))
		commentSize := int64(binary.LittleEndian.Uint16(fixed[32:]))
		headerOffset := binary.LittleEndian.Uint32(fixed[42:])

		name := make([]byte, nameSize)
		if _, err := f.ReadAt(name, pos+centralDirEntry); err != nil {
			return nil, fmt.Errorf("read member name: %w", err)
		}

		if string(name) == member {
			return &centralEntry{
				name:           member,
				compressedSize: compressedSize,
				headerOffset:   headerOffset,
			}, nil
		}

		pos += centralDirEntry + nameSize + extraSize + commentSize
	}
	return nil, fmt.Errorf("%q: %w", member, ErrMemberNotFound)
}

// entryDataOffset resolves where the member's stored data begins by
// skipping its local file header.
func entryDataOffset(f *os.File, entry *centralEntry) (int64, error) {
	// Local header: the name and extra field lengths sit at offsets 26
	// and 28; the extra field may differ from the central directory's.
	var lengths [4]byte
	if _, err := f.ReadAt(lengths[:], int64(entry.headerOffset)+26); err != nil {
		return 0, fmt.Errorf("read local file header: %w", err)
	}
	nameSize := int64(binary.LittleEndian.Uint16(lengths[0:]))
	extraSize := int64(binary.LittleEndian.Uint16(lengths[2:]))
	return int64(entry.headerOffset) + 30 + nameSize + extraSize, nil
}
