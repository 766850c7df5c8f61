package plan

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cespare/xxhash"
	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/tempfile"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// MaxPrivateFiles bounds nbatch per spec.md §4.7: "3 x nbatch <= MaxPrivateFiles".
// Each batch needs one build-side spill file and one probe-side spill file,
// plus headroom for the join's own temp files, hence the factor of 3.
const MaxPrivateFiles = 100

// HashKeyFn extracts the join/bucket key columns from a row as a byte
// encoding suitable for hashing; equal keys must encode identically.
type HashKeyFn func(tuple.Row) []byte

// HashTable implements spec.md §4.7's two-phase batched hash: totalbuckets
// (virtual, for hash-value distribution) vs nbuckets (physical, resident),
// and nbatch spill batches. Tuples whose bucket index >= nbuckets spill to
// one of nbatch files; a later pass rebuilds with totalbuckets := nbuckets
// and no further spilling (spec.md §4.7).
type HashTable struct {
	totalBuckets int
	nBuckets     int
	nBatch       int
	keyFn        HashKeyFn

	resident map[int][]tuple.Row
	// buildSpill holds one spill file per batch (len == nBatch). Batch
	// numbers come from bucket%nBatch for buckets >= nBuckets, so 0 is a
	// legitimate spill batch, not reserved for the (separately-tracked)
	// resident set.
	buildSpill []*tempfile.BufFile
	tmpDir     string
}

// NewHashTable builds an (initially empty) hash table. totalBuckets must be
// >= nBuckets; nBatch == 0 means no spilling will ever occur (the whole
// build side is expected to fit in nBuckets).
func NewHashTable(tmpDir string, totalBuckets, nBuckets, nBatch int, keyFn HashKeyFn) (*HashTable, error) {
	if 3*nBatch > MaxPrivateFiles {
		return nil, errs.Internal.New("nbatch %d exceeds MaxPrivateFiles budget (3*nbatch<=%d)", nBatch, MaxPrivateFiles)
	}
	ht := &HashTable{
		totalBuckets: totalBuckets, nBuckets: nBuckets, nBatch: nBatch, keyFn: keyFn,
		resident: make(map[int][]tuple.Row), tmpDir: tmpDir,
	}
	if nBatch > 0 {
		ht.buildSpill = make([]*tempfile.BufFile, nBatch)
	}
	return ht, nil
}

// BucketAndBatch derives both the physical bucket and spill batch from one
// hash value, per SPEC_FULL.md supplemented feature #3
// (ExecHashGetBucketAndBatch): both come from one 32-bit hash via modulo,
// never hashed twice.
func (ht *HashTable) BucketAndBatch(key []byte) (bucket, batch int) {
	h := int(xxhash.Sum64(key) & 0x7fffffff)
	bucket = h % ht.totalBuckets
	if ht.nBatch > 0 {
		batch = bucket % ht.nBatch
	}
	return bucket, batch
}

// Insert adds row to the table, spilling to disk if its bucket falls
// outside the resident range.
func (ht *HashTable) Insert(row tuple.Row) error {
	key := ht.keyFn(row)
	bucket, batch := ht.BucketAndBatch(key)
	if bucket < ht.nBuckets {
		ht.resident[bucket] = append(ht.resident[bucket], row)
		return nil
	}
	return ht.spillBuild(batch, row)
}

func (ht *HashTable) spillBuild(batch int, row tuple.Row) error {
	f := ht.buildSpill[batch]
	if f == nil {
		var err error
		f, err = tempfile.Create(ht.tmpDir, "hashbuild")
		if err != nil {
			return err
		}
		ht.buildSpill[batch] = f
	}
	return writeSpillRow(f, row)
}

// Probe returns the resident rows that share probeKey's bucket, for probe
// rows whose bucket is < nBuckets (i.e. resolvable without a later batch
// pass).
func (ht *HashTable) Probe(probeKey []byte) []tuple.Row {
	bucket, _ := ht.BucketAndBatch(probeKey)
	return ht.resident[bucket]
}

// RebuildFromBatch loads the build-side spill file for batch and rebuilds a
// purely in-memory table for it, with totalBuckets := nBuckets (no further
// spilling), per spec.md §4.7.
func (ht *HashTable) RebuildFromBatch(batch int) (*HashTable, error) {
	next := &HashTable{
		totalBuckets: ht.nBuckets, nBuckets: ht.nBuckets, nBatch: 0, keyFn: ht.keyFn,
		resident: make(map[int][]tuple.Row), tmpDir: ht.tmpDir,
	}
	f := ht.buildSpill[batch]
	if f == nil {
		return next, nil
	}
	if err := f.Seek(0); err != nil {
		return nil, err
	}
	for {
		row, err := readSpillRow(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := next.Insert(row); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// Close releases every spill file. Closing an already-closed table is a
// no-op, since both HashNode.End and HashJoinNode.End close the same table.
func (ht *HashTable) Close() error {
	var firstErr error
	for i, f := range ht.buildSpill {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		ht.buildSpill[i] = nil
	}
	return firstErr
}

// tempfileHandle wraps a BufFile for the probe-side spill files HashJoinNode
// writes during phase 0 and replays during phase 1, sharing the same
// spill-row encoding as the build side.
type tempfileHandle struct {
	f *tempfile.BufFile
}

func newTempfileHandle(dir string) (*tempfileHandle, error) {
	f, err := tempfile.Create(dir, "hashprobe")
	if err != nil {
		return nil, err
	}
	return &tempfileHandle{f: f}, nil
}

func (h *tempfileHandle) write(row tuple.Row) error { return writeSpillRow(h.f, row) }

func (h *tempfileHandle) readAll() ([]tuple.Row, error) {
	if err := h.f.Seek(0); err != nil {
		return nil, err
	}
	var rows []tuple.Row
	for {
		row, err := readSpillRow(h.f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (h *tempfileHandle) close() error { return h.f.Close() }

// --- minimal row (de)serialization for spill files -----------------------
//
// Spilled rows only need to round-trip through this process's own hash join,
// so a small closed type set (covering every scalar SQL type this package's
// tests and plan nodes exercise) is enough; arbitrary Go values are not
// supported and encodeValue returns an error for anything else.

func writeSpillRow(f *tempfile.BufFile, row tuple.Row) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(row)))
	if _, err := f.Write(hdr[:]); err != nil {
		return err
	}
	for _, v := range row {
		b, err := encodeValue(v)
		if err != nil {
			return err
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		if _, err := f.Write(lenBuf[:]); err != nil {
			return err
		}
		if len(b) > 0 {
			if _, err := f.Write(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func readSpillRow(f *tempfile.BufFile) (tuple.Row, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	row := make(tuple.Row, n)
	for i := range row {
		var lenBuf [4]byte
		if _, err := io.ReadFull(f, lenBuf[:]); err != nil {
			return nil, err
		}
		l := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, l)
		if l > 0 {
			if _, err := io.ReadFull(f, buf); err != nil {
				return nil, err
			}
		}
		v, err := decodeValue(buf)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

const (
	tagNull byte = iota
	tagInt64
	tagFloat64
	tagString
	tagBool
)

func encodeValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte{tagNull}, nil
	case int:
		return encodeInt64(int64(t)), nil
	case int32:
		return encodeInt64(int64(t)), nil
	case int64:
		return encodeInt64(t), nil
	case float64:
		buf := make([]byte, 9)
		buf[0] = tagFloat64
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(t))
		return buf, nil
	case string:
		buf := append([]byte{tagString}, []byte(t)...)
		return buf, nil
	case bool:
		b := byte(0)
		if t {
			b = 1
		}
		return []byte{tagBool, b}, nil
	default:
		return nil, errs.Internal.New("hash spill: unsupported value type %T", v)
	}
}

func encodeInt64(v int64) []byte {
	buf := make([]byte, 9)
	buf[0] = tagInt64
	binary.BigEndian.PutUint64(buf[1:], uint64(v))
	return buf
}

func decodeValue(b []byte) (interface{}, error) {
	if len(b) == 0 {
		return nil, errs.Internal.New("hash spill: empty encoded value")
	}
	switch b[0] {
	case tagNull:
		return nil, nil
	case tagInt64:
		return int64(binary.BigEndian.Uint64(b[1:])), nil
	case tagFloat64:
		return math.Float64frombits(binary.BigEndian.Uint64(b[1:])), nil
	case tagString:
		return string(b[1:]), nil
	case tagBool:
		return b[1] == 1, nil
	default:
		return nil, errs.Internal.New("hash spill: unknown tag %d", b[0])
	}
}

