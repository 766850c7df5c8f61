package access

import (
	"sort"
	"sync"

	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// MemMethod is a minimal in-memory access method used for tests and for
// embedding hosts that want a reference implementation to register under a
// name like "memheap". It keeps a per-relation ordered slice of
// (scan-key-independent) inserted rows and filters client-side, which is
// enough to exercise the Method/Scan contract without depending on a real
// storage engine.
type MemMethod struct {
	name string
	mu   sync.Mutex
	rows map[uint32][]memRow
}

type memRow struct {
	tid ItemPointer
	row tuple.Row
}

func NewMemMethod(name string) *MemMethod {
	return &MemMethod{name: name, rows: make(map[uint32][]memRow)}
}

func (m *MemMethod) Name() string { return m.name }

func (m *MemMethod) Insert(relOID uint32, values tuple.Row, tid ItemPointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[relOID] = append(m.rows[relOID], memRow{tid: tid, row: values})
	return nil
}

func (m *MemMethod) Delete(relOID uint32, tid ItemPointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.rows[relOID]
	for i, r := range rows {
		if r.tid == tid {
			m.rows[relOID] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MemMethod) Begin(relOID uint32, keys []ScanKey, dir Direction) (Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]memRow, len(m.rows[relOID]))
	copy(snapshot, m.rows[relOID])

	s := &memScan{method: m, relOID: relOID, dir: dir}
	s.applyKeys(snapshot, keys)
	return s, nil
}

type memScan struct {
	method *MemMethod
	relOID uint32
	dir    Direction
	rows   []memRow
	pos    int
}

func (s *memScan) applyKeys(snapshot []memRow, keys []ScanKey) {
	filtered := snapshot[:0:0]
	for _, r := range snapshot {
		ok := true
		for _, k := range keys {
			if k.Attno >= len(r.row) || r.row[k.Attno] != k.Operand {
				ok = false
				break
			}
		}
		if ok {
			filtered = append(filtered, r)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].tid.Block != filtered[j].tid.Block {
			return filtered[i].tid.Block < filtered[j].tid.Block
		}
		return filtered[i].tid.Offset < filtered[j].tid.Offset
	})
	if s.dir == Backward {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	s.rows = filtered
	s.pos = 0
}

func (s *memScan) GetNext() (ItemPointer, bool, error) {
	if s.pos >= len(s.rows) {
		return ItemPointer{}, false, nil
	}
	tid := s.rows[s.pos].tid
	s.pos++
	return tid, true, nil
}

func (s *memScan) Rescan(keys []ScanKey, dir Direction) error {
	s.method.mu.Lock()
	snapshot := make([]memRow, len(s.method.rows[s.relOID]))
	copy(snapshot, s.method.rows[s.relOID])
	s.method.mu.Unlock()

	s.dir = dir
	s.applyKeys(snapshot, keys)
	return nil
}

func (s *memScan) MarkPos() (Mark, error) {
	return s.pos, nil
}

func (s *memScan) RestrPos(m Mark) error {
	s.pos = m.(int)
	return nil
}

func (s *memScan) End() error { return nil }
