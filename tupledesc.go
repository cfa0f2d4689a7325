package heapdb

import "fmt"

// DBType is the type of a tuple field (§3: "Types drawn from a closed set
// {INT, STRING(fixed length)}"). Kept from the teacher's tuple.go, minus
// UnknownType, which only existed there to support the SQL parser's
// type-inference pass (out of scope per spec.md §1).
type DBType int

const (
	IntType DBType = iota
	StringType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown"
	}
}

// FieldType names one column of a TupleDesc: its type and an optional name
// (§3). The teacher's FieldType also carries a TableQualifier, used only by
// the SQL parser/planner to disambiguate `t1.name` vs `t2.name`; dropped
// here since joins and qualified names are part of the excluded operator
// layer.
type FieldType struct {
	Fname string
	Ftype DBType
}

// TupleDesc is the ordered list of a table's field types (§3). Its
// serialized width is deterministic from the type list alone.
type TupleDesc struct {
	Fields []FieldType
}

// intFieldWidth is the on-disk width of an INT field: a 4-byte big-endian
// signed integer (§6 "Tuple field encoding"), not the teacher's 8-byte
// int64 — the wire format is pinned by spec.md §6, so this departs from the
// teacher's toBuffer/initFromBuffer sizing.
const intFieldWidth = 4

// stringFieldOverhead is the 4-byte length prefix preceding every STRING's
// payload bytes (§6).
const stringFieldOverhead = 4

// fieldWidth returns the serialized width, in bytes, of one field of the
// given type, given the active StringLength (config.go).
func fieldWidth(t DBType) int {
	switch t {
	case IntType:
		return intFieldWidth
	case StringType:
		return stringFieldOverhead + StringLength
	default:
		return 0
	}
}

// Width returns the total serialized width of a tuple of this TupleDesc, in
// bytes (§3: "Total serialized width deterministic from the type list").
func (td *TupleDesc) Width() int {
	w := 0
	for _, f := range td.Fields {
		w += fieldWidth(f.Ftype)
	}
	return w
}

// Equals compares two TupleDescs field-by-field (name and type). Kept from
// the teacher's equals() method, renamed to the exported form since the
// kernel's schema-mismatch checks are part of the public HeapFile/HeapPage
// contract rather than SQL-parser-internal.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Fname != other.Fields[i].Fname {
			return false
		}
		if td.Fields[i].Ftype != other.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// Copy returns a deep copy of td; assigning a TupleDesc's Fields slice does
// not copy its backing array (the teacher's copy() doc comment, carried
// over verbatim since it's still the right caution for Go beginners reading
// this code).
func (td *TupleDesc) Copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

func (td *TupleDesc) String() string {
	return fmt.Sprintf("%v", td.Fields)
}
