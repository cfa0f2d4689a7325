package heapdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_TupleDesc_Width_SumsFieldWidths(t *testing.T) {
	t.Parallel()

	StringLength = DefaultStringLength
	td := TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}

	require.Equal(t, intFieldWidth+stringFieldOverhead+StringLength, td.Width())
}

func Test_TupleDesc_Equals(t *testing.T) {
	t.Parallel()

	a := TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	b := TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	c := TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: StringType}}}

	require.True(t, a.Equals(&b))
	require.False(t, a.Equals(&c))
}

func Test_TupleDesc_Copy_IsIndependent(t *testing.T) {
	t.Parallel()

	orig := &TupleDesc{Fields: []FieldType{{Fname: "id", Ftype: IntType}}}
	cp := orig.Copy()
	cp.Fields[0].Fname = "changed"

	require.Equal(t, "id", orig.Fields[0].Fname)
}

func Test_NumSlotsForPage_ZeroWidthRejected(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, numSlotsForPage(4096, 0))
}
