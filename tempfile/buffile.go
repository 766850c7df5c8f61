// Package tempfile implements the buffered temp file layer of spec.md §4.8
// (component C4): a byte-addressed append/seek stream backed by an 8KB
// in-memory page, used by sort/hashjoin spills. Ported behaviorally from
// mtpgsql/src/backend/storage/file/buffile.c, including that file's
// multi-segment rollover once a logical file grows past one OS segment
// (SPEC_FULL.md supplemented feature #7). Single-threaded ownership: a
// BufFile is not safe for concurrent use by multiple goroutines.
package tempfile

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	// PageSize is the in-memory page buffer size, matching the original's
	// BLCKSZ-aligned buffer.
	PageSize = 8192
	// defaultSegmentPages bounds how many pages live in one backing OS file
	// before BufFile rolls to a new segment, mirroring RELSEG_SIZE.
	defaultSegmentPages = 1 << 17 // 1GB worth of 8K pages
)

// BufFile is a byte-addressed append/seek stream with one 8KB page of
// write-behind buffering.
type BufFile struct {
	dir          string
	prefix       string
	segmentPages int64

	segments []*os.File
	curSeg   int

	page      [PageSize]byte
	pageValid int // number of valid bytes currently in page
	pageDirty bool
	pagePos   int // intra-page read/write position

	offset int64 // absolute logical offset of the start of the current page
}

// Create opens a new BufFile backed by temp files under dir, using prefix
// for the segment file names.
func Create(dir, prefix string) (*BufFile, error) {
	f, err := os.CreateTemp(dir, prefix+"-seg0-")
	if err != nil {
		return nil, errors.Wrap(err, "tempfile: create segment 0")
	}
	return &BufFile{
		dir:          dir,
		prefix:       prefix,
		segmentPages: defaultSegmentPages,
		segments:     []*os.File{f},
	}, nil
}

func (b *BufFile) segmentBytes() int64 { return b.segmentPages * PageSize }

// segmentFor returns the os.File for the page at absolute byte offset
// off, creating new segment files as needed.
func (b *BufFile) segmentFor(off int64) (*os.File, int64, error) {
	segBytes := b.segmentBytes()
	idx := int(off / segBytes)
	for len(b.segments) <= idx {
		f, err := os.CreateTemp(b.dir, fmt.Sprintf("%s-seg%d-", b.prefix, len(b.segments)))
		if err != nil {
			return nil, 0, errors.Wrap(err, "tempfile: create next segment")
		}
		b.segments = append(b.segments, f)
	}
	return b.segments[idx], off % segBytes, nil
}

// flushPage writes the current page to its backing segment if dirty.
func (b *BufFile) flushPage() error {
	if !b.pageDirty {
		return nil
	}
	seg, segOff, err := b.segmentFor(b.offset)
	if err != nil {
		return err
	}
	if _, err := seg.WriteAt(b.page[:b.pageValid], segOff); err != nil {
		return errors.Wrap(err, "tempfile: flush page")
	}
	b.pageDirty = false
	return nil
}

// loadPage reads the page covering absolute offset off into the buffer.
func (b *BufFile) loadPage(off int64) error {
	if err := b.flushPage(); err != nil {
		return err
	}
	pageStart := off - (off % PageSize)
	seg, segOff, err := b.segmentFor(pageStart)
	if err != nil {
		return err
	}
	n, err := seg.ReadAt(b.page[:], segOff)
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "tempfile: load page")
	}
	b.pageValid = n
	b.offset = pageStart
	b.pagePos = int(off - pageStart)
	return nil
}

// Seek repositions the stream to logical offset pos. Seeks within the
// current page only adjust pagePos; seeks outside flush (if dirty) and
// reload, per spec.md §4.8.
func (b *BufFile) Seek(pos int64) error {
	if pos >= b.offset && pos < b.offset+int64(PageSize) {
		b.pagePos = int(pos - b.offset)
		return nil
	}
	return b.loadPage(pos)
}

// Tell returns the current logical offset.
func (b *BufFile) Tell() int64 {
	return b.offset + int64(b.pagePos)
}

// Write appends/overwrites len(p) bytes at the current position, extending
// the file as needed, and returns the number of bytes written.
func (b *BufFile) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if b.pagePos == PageSize {
			if err := b.loadPage(b.offset + PageSize); err != nil {
				return written, err
			}
		}
		n := copy(b.page[b.pagePos:], p)
		b.pagePos += n
		if b.pagePos > b.pageValid {
			b.pageValid = b.pagePos
		}
		b.pageDirty = true
		p = p[n:]
		written += n
	}
	return written, nil
}

// Read reads up to len(p) bytes from the current position, returning
// io.EOF once the logical end of file is reached within the current page.
func (b *BufFile) Read(p []byte) (int, error) {
	read := 0
	for len(p) > 0 {
		if b.pagePos == b.pageValid {
			if b.pageValid < PageSize {
				if read > 0 {
					return read, nil
				}
				return 0, io.EOF
			}
			if err := b.loadPage(b.offset + PageSize); err != nil {
				return read, err
			}
			if b.pageValid == 0 {
				if read > 0 {
					return read, nil
				}
				return 0, io.EOF
			}
		}
		n := copy(p, b.page[b.pagePos:b.pageValid])
		b.pagePos += n
		p = p[n:]
		read += n
	}
	return read, nil
}

// Close flushes any dirty page and releases all backing segment files.
func (b *BufFile) Close() error {
	if err := b.flushPage(); err != nil {
		return err
	}
	var firstErr error
	for _, seg := range b.segments {
		name := seg.Name()
		if err := seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		_ = os.Remove(name)
	}
	return firstErr
}
