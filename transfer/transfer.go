// Package transfer implements the Field Transfer facility of spec.md §2
// (component C10): a type-dispatched copy of one projected column value
// into an output binding, grounded on
// mtpgsql/src/backend/env/FieldTransfer.c's TransferToRegistered and its
// StreamOutValue/BinaryCopyOutValue/Direct*CopyValue helper family.
package transfer

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/spf13/cast"

	"github.com/weaverdb/weaverdb-sub001/errs"
	"github.com/weaverdb/weaverdb-sub001/tuple"
)

// Type OIDs for every scalar type FieldTransfer.c's two dispatch switches
// name. The real Postgres built-ins (Bool..Timestamp) keep their upstream
// pg_type.h values for wire compatibility; Blob/Java/Streaming/Connector
// are WeaverDB-specific types with no stable upstream OID, so they're
// assigned a private block above the highest standard OID referenced here.
const (
	BoolOID      uint32 = 16
	ByteaOID     uint32 = 17
	CharOID      uint32 = 18
	NameOID      uint32 = 19
	Int8OID      uint32 = 20
	Int2OID      uint32 = 21
	Int4OID      uint32 = 23
	RegprocOID   uint32 = 24
	TextOID      uint32 = 25
	OidOID       uint32 = 26
	XidOID       uint32 = 28
	Float4OID    uint32 = 700
	Float8OID    uint32 = 701
	BpcharOID    uint32 = 1042
	VarcharOID   uint32 = 1043
	TimestampOID uint32 = 1114

	BlobOID      uint32 = 90000
	JavaOID      uint32 = 90001
	StreamingOID uint32 = 90002
	ConnectorOID uint32 = 90003
)

// NullValue and CloseOp are the transfer-length sentinels a TransferFunc
// receives in place of a real byte count, per spec.md §4.10 ("len =
// NULL_VALUE for null, len = CLOSE_OP after streaming completion") and
// FieldTransfer.c's NULL_VALUE/CLOSE_OP.
const (
	NullValue = -1
	CloseOp   = -2
)

// streamChunkSize bounds one StreamOutValue chunk, mirroring
// FieldTransfer.c's "sizeof_max_tuple_blob() * 5" buffer sizing.
const streamChunkSize = 8192 * 5

// TransferFunc is the registered-mode raw sink, mirroring InputOutput's
// `transfer` function pointer: userArgs is opaque caller state, buf/length
// carry one value chunk, and length carries NullValue/CloseOp at the two
// sentinel points instead of a real count.
type TransferFunc func(userArgs interface{}, typeOID uint32, buf []byte, length int) (int, error)

// Segment is one piece of an indirect (out-of-line) blob: an opaque
// storage reference plus its length, matching spec.md §6 "indirect blobs
// store a list of (ItemPointer, length) segments".
type Segment struct {
	Ref    interface{}
	Length int
}

// SegmentReader resolves one Segment's bytes. Implemented by whichever
// storage layer owns the indirect blob heap; kept narrow here so transfer
// does not need to import a storage package.
type SegmentReader interface {
	ReadSegment(ref interface{}) ([]byte, error)
}

// IndirectBlob is an out-of-line column value: an ordered segment list
// plus the reader that resolves each one, matching spec.md §6's persisted
// indirect-blob layout and grounded on open_read_pipeline_blob/
// read_pipeline_segment_blob's segment-at-a-time pull protocol.
type IndirectBlob struct {
	Segments []Segment
	Reader   SegmentReader
}

// RegisteredBinding implements session.OutputBinding in "registered
// transfer" mode (spec.md §4.10, connection-bound output): each column
// value is pushed through a caller-supplied TransferFunc, grounded on
// TransferToRegistered.
type RegisteredBinding struct {
	UserArgs interface{}
	// VarType is the binding's declared output type; 0 means "whatever
	// the column is" — no coercion is attempted, matching
	// TransferToRegistered's `output->varType == 0` fast path.
	VarType uint32
	Fn      TransferFunc
}

// Transfer implements session.OutputBinding.
func (b *RegisteredBinding) Transfer(typeOID uint32, value interface{}, isNull bool) error {
	if isNull {
		_, err := b.Fn(b.UserArgs, typeOID, nil, NullValue)
		return err
	}
	if blob, ok := value.(IndirectBlob); ok {
		return b.streamOut(typeOID, blob)
	}
	if b.VarType == 0 || b.VarType == typeOID {
		buf, err := encodeDirect(typeOID, value)
		if err != nil {
			return err
		}
		_, err = b.Fn(b.UserArgs, typeOID, buf, len(buf))
		return err
	}

	coerced, outOID, err := Coerce(b.VarType, typeOID, value)
	if err != nil {
		return err
	}
	buf, err := encodeDirect(outOID, coerced)
	if err != nil {
		return err
	}
	_, err = b.Fn(b.UserArgs, outOID, buf, len(buf))
	return err
}

// streamOut drains an IndirectBlob's segments to the sink in bounded
// chunks, then emits the CloseOp sentinel, grounded on StreamOutValue's
// read-pipeline-then-close shape.
func (b *RegisteredBinding) streamOut(typeOID uint32, blob IndirectBlob) error {
	for _, seg := range blob.Segments {
		buf, err := blob.Reader.ReadSegment(seg.Ref)
		if err != nil {
			return err
		}
		sent := 0
		for sent < len(buf) {
			end := sent + streamChunkSize
			if end > len(buf) {
				end = len(buf)
			}
			n, err := b.Fn(b.UserArgs, typeOID, buf[sent:end], end-sent)
			if err != nil {
				return err
			}
			if n <= 0 {
				return errs.Internal.New("registered transfer stalled mid-stream")
			}
			sent += n
		}
	}
	_, err := b.Fn(b.UserArgs, typeOID, nil, CloseOp)
	return err
}

// OutputSlot implements session.OutputBinding in "output-slot transfer"
// mode (spec.md §4.10, variable-slot output): it writes a column's encoded
// bytes into a caller-declared fixed buffer, or — on overflow — allocates
// from the transaction arena and publishes the overflow slice, matching
// spec.md's "write into caller buffer up to declared size; on overflow
// allocate from the transaction arena and publish the pointer."
type OutputSlot struct {
	// Declared is the caller-declared fixed buffer. Nil means "no fixed
	// buffer": every value overflows to the arena.
	Declared []byte
	// Arena backs overflow allocation. Nil means overflow is an error,
	// matching a caller that declared a buffer with no fallback.
	Arena *tuple.Arena

	Null     bool
	Length   int
	Overflow []byte // set only when the value didn't fit Declared
}

// Transfer implements session.OutputBinding.
func (s *OutputSlot) Transfer(typeOID uint32, value interface{}, isNull bool) error {
	s.Null = isNull
	s.Overflow = nil
	s.Length = 0
	if isNull {
		return nil
	}

	buf, err := encodeDirect(typeOID, value)
	if err != nil {
		return err
	}
	s.Length = len(buf)

	if s.Declared != nil && len(buf) <= len(s.Declared) {
		copy(s.Declared, buf)
		return nil
	}
	if s.Arena == nil {
		return errs.BinaryTruncation.New(len(s.Declared), len(buf))
	}
	s.Overflow = buf
	return nil
}

// encodeDirect serializes a scalar value to its wire form, mirroring
// FieldTransfer.c's Direct*CopyValue/BinaryCopyOutValue family: one fixed
// width per type, little-endian, text/bytea/blob types passed through as
// raw bytes.
func encodeDirect(typeOID uint32, value interface{}) ([]byte, error) {
	switch typeOID {
	case BoolOID, CharOID:
		v, err := cast.ToInt8E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		return []byte{byte(v)}, nil
	case Int2OID:
		v, err := cast.ToInt16E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v))
		return buf, nil
	case Int4OID, OidOID, XidOID, RegprocOID, ConnectorOID:
		v, err := cast.ToInt32E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v))
		return buf, nil
	case Int8OID:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v))
		return buf, nil
	case Float4OID:
		v, err := cast.ToFloat32E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		return buf, nil
	case Float8OID:
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		return buf, nil
	case TimestampOID:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v))
		return buf, nil
	case TextOID, VarcharOID, BpcharOID, NameOID:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, errs.TypeConversionError.New(err.Error())
		}
		return []byte(s), nil
	case ByteaOID, BlobOID, JavaOID, StreamingOID:
		switch v := value.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		default:
			return nil, errs.TypeConversionError.New("no output function for type")
		}
	default:
		return nil, errs.TypeConversionError.New("no output function for type")
	}
}

// Coerce implements the C10 type-compatibility matrix: direct copy when
// declared-equal (handled by the caller before Coerce is reached), or a
// fixed set of pairwise coercions otherwise, grounded on
// TransferToRegistered's `switch (output->varType)` branch (the one taken
// when the binding's declared type differs from the column's actual
// type). Any non-listed pair fails with TypeMismatch, per spec.md §4.10.
// Coerce returns the coerced value together with the OID it should now be
// encoded as (usually varType, except the Streaming passthrough case).
func Coerce(varType, actualType uint32, value interface{}) (interface{}, uint32, error) {
	noCoerce := func() error {
		return errs.TypeMismatchNoCoerce.New(strconv.FormatUint(uint64(actualType), 10), strconv.FormatUint(uint64(varType), 10))
	}
	switch varType {
	case StreamingOID:
		return value, actualType, nil

	case CharOID, VarcharOID:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, 0, noCoerce()
		}
		return s, VarcharOID, nil

	case TextOID, BpcharOID, ByteaOID, BlobOID:
		return value, varType, nil

	case Int4OID:
		switch actualType {
		case ConnectorOID:
			return value, Int4OID, nil
		case BoolOID:
			b, err := cast.ToBoolE(value)
			if err != nil {
				return nil, 0, noCoerce()
			}
			if b {
				return int32(1), Int4OID, nil
			}
			return int32(0), Int4OID, nil
		case Int8OID:
			v, err := cast.ToInt64E(value)
			if err != nil {
				return nil, 0, noCoerce()
			}
			if v > math.MaxInt32 || v < math.MinInt32 {
				return nil, 0, noCoerce()
			}
			return int32(v), Int4OID, nil
		default:
			return nil, 0, noCoerce()
		}

	case BoolOID:
		if actualType != Int4OID {
			return nil, 0, noCoerce()
		}
		v, err := cast.ToInt64E(value)
		if err != nil {
			return nil, 0, noCoerce()
		}
		return v != 0, BoolOID, nil

	case Int8OID:
		v, err := cast.ToInt64E(value)
		if err != nil {
			return nil, 0, noCoerce()
		}
		return v, Int8OID, nil

	case Float8OID:
		switch actualType {
		case Float4OID, Float8OID:
			v, err := cast.ToFloat64E(value)
			if err != nil {
				return nil, 0, noCoerce()
			}
			return v, Float8OID, nil
		default:
			return nil, 0, noCoerce()
		}

	default:
		return nil, 0, errs.TypeMismatch.New("unsupported declared output type")
	}
}
