package heapdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBValue is the interface implemented by a tuple field's value. Trimmed
// from the teacher's DBValue, which also required EvalPred(DBValue, BoolOp)
// for the predicate evaluator used by Filter/Join operators — those live in
// the excluded operator layer (spec.md §1), so the kernel only needs a
// marker interface plus the two concrete field types it must encode/decode.
type DBValue interface {
	fieldType() DBType
}

// IntField is an INT column value.
type IntField struct {
	Value int64
}

func (IntField) fieldType() DBType { return IntType }

// StringField is a STRING(StringLength) column value.
type StringField struct {
	Value string
}

func (StringField) fieldType() DBType { return StringType }

// Tuple is a fixed-width record governed by a TupleDesc (§3). A tuple
// returned by an iterator carries the RecordID of its physical location; a
// freshly constructed tuple has a nil Rid.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordID
}

// writeTo serializes t's fields in order into b, per §6's wire format:
// INT as a 4-byte big-endian signed integer, STRING(k) as a 4-byte
// big-endian length prefix followed by k space-padded payload bytes.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for i, field := range t.Fields {
		ftype := t.Desc.Fields[i].Ftype
		switch v := field.(type) {
		case IntField:
			if ftype != IntType {
				return newErr(TypeMismatchError, fmt.Sprintf("field %d: expected %v, got int", i, ftype))
			}
			if err := binary.Write(b, binary.BigEndian, int32(v.Value)); err != nil {
				return err
			}
		case StringField:
			if ftype != StringType {
				return newErr(TypeMismatchError, fmt.Sprintf("field %d: expected %v, got string", i, ftype))
			}
			if err := writeStringField(b, v); err != nil {
				return err
			}
		default:
			return newErr(TypeMismatchError, fmt.Sprintf("field %d: unsupported field type %T", i, field))
		}
	}
	return nil
}

func writeStringField(b *bytes.Buffer, f StringField) error {
	payload := make([]byte, StringLength)
	for i := range payload {
		payload[i] = ' '
	}
	copy(payload, f.Value)
	if err := binary.Write(b, binary.BigEndian, int32(len(payload))); err != nil {
		return err
	}
	return binary.Write(b, binary.BigEndian, payload)
}

// readTupleFrom deserializes a tuple of the given TupleDesc from b, the
// inverse of writeTo.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc, Fields: make([]DBValue, 0, len(desc.Fields))}
	for _, fd := range desc.Fields {
		switch fd.Ftype {
		case IntType:
			var v int32
			if err := binary.Read(b, binary.BigEndian, &v); err != nil {
				return nil, wrapErr(MalformedDataError, "reading int field", err)
			}
			t.Fields = append(t.Fields, IntField{Value: int64(v)})
		case StringType:
			f, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		default:
			return nil, newErr(TypeMismatchError, fmt.Sprintf("unknown field type %v", fd.Ftype))
		}
	}
	return t, nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var length int32
	if err := binary.Read(b, binary.BigEndian, &length); err != nil {
		return StringField{}, wrapErr(MalformedDataError, "reading string length prefix", err)
	}
	if int(length) != StringLength {
		return StringField{}, newErr(MalformedDataError, fmt.Sprintf("string length prefix %d does not match configured StringLength %d", length, StringLength))
	}
	payload := make([]byte, length)
	if err := binary.Read(b, binary.BigEndian, payload); err != nil {
		return StringField{}, wrapErr(MalformedDataError, "reading string payload", err)
	}
	return StringField{Value: strings.TrimRight(string(payload), " ")}, nil
}

// Equals compares two tuples for equality: same TupleDesc and same field
// values, in order. Ported from the teacher's equals(), exported since it's
// useful outside this package's own tests (e.g. property tests for P2).
func (t *Tuple) Equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.Equals(&other.Desc) {
		return false
	}
	if len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

// PrettyPrintString renders the tuple as comma-separated field values, for
// debug output; carried over from the teacher's tuple.go largely unchanged.
func (t *Tuple) PrettyPrintString() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		switch v := f.(type) {
		case IntField:
			parts[i] = strconv.FormatInt(v.Value, 10)
		case StringField:
			parts[i] = v.Value
		}
	}
	return strings.Join(parts, ", ")
}
