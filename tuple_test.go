package heapdb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDesc() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
}

// Test_Tuple_WriteRead_RoundTrip is P2: decode(encode(tuple)) == tuple.
func Test_Tuple_WriteRead_RoundTrip(t *testing.T) {
	t.Parallel()
	StringLength = DefaultStringLength

	desc := testDesc()
	orig := &Tuple{Desc: desc, Fields: []DBValue{
		IntField{Value: 42},
		StringField{Value: "alice"},
	}}

	buf := new(bytes.Buffer)
	require.NoError(t, orig.writeTo(buf))
	require.Equal(t, desc.Width(), buf.Len())

	got, err := readTupleFrom(buf, &desc)
	require.NoError(t, err)
	require.True(t, orig.Equals(got))
}

func Test_Tuple_WriteTo_RejectsTypeMismatch(t *testing.T) {
	t.Parallel()
	StringLength = DefaultStringLength

	desc := testDesc()
	bad := &Tuple{Desc: desc, Fields: []DBValue{
		StringField{Value: "should be int"},
		StringField{Value: "alice"},
	}}

	err := bad.writeTo(new(bytes.Buffer))
	require.Error(t, err)
	var gerr GoDBError
	require.ErrorAs(t, err, &gerr)
	require.Equal(t, TypeMismatchError, gerr.Code())
}

func Test_Tuple_StringField_TruncatesPaddingOnRead(t *testing.T) {
	t.Parallel()
	StringLength = 8

	desc := TupleDesc{Fields: []FieldType{{Fname: "s", Ftype: StringType}}}
	orig := &Tuple{Desc: desc, Fields: []DBValue{StringField{Value: "hi"}}}

	buf := new(bytes.Buffer)
	require.NoError(t, orig.writeTo(buf))

	got, err := readTupleFrom(buf, &desc)
	require.NoError(t, err)
	require.Equal(t, "hi", got.Fields[0].(StringField).Value)

	StringLength = DefaultStringLength
}

func Test_Tuple_Equals_DifferentFieldCount(t *testing.T) {
	t.Parallel()

	desc := testDesc()
	a := &Tuple{Desc: desc, Fields: []DBValue{IntField{Value: 1}, StringField{Value: "x"}}}
	b := &Tuple{Desc: desc, Fields: []DBValue{IntField{Value: 1}}}

	require.False(t, a.Equals(b))
}
