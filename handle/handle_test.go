package handle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillback/stockpile/handle"
)

type payload struct {
	value int64
}

func TestNilHandle(t *testing.T) {
	h := handle.Nil[payload]()

	require.True(t, h.IsNil())
	require.False(t, h.IsValid())
}

func TestReset(t *testing.T) {
	h := handle.Handle[payload]{Offset: 32, Version: 3}
	require.True(t, h.IsValid())

	h.Reset()
	require.True(t, h.IsNil())
	require.EqualValues(t, 0, h.Version)
}

func TestEquality(t *testing.T) {
	a := handle.Handle[payload]{Offset: 16, Version: 1}
	b := handle.Handle[payload]{Offset: 16, Version: 1}
	c := handle.Handle[payload]{Offset: 16, Version: 2}

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestHashCombinesBothFields(t *testing.T) {
	a := handle.Handle[payload]{Offset: 16, Version: 1}
	b := handle.Handle[payload]{Offset: 16, Version: 2}
	c := handle.Handle[payload]{Offset: 32, Version: 1}

	require.NotEqual(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
	require.Equal(t, a.Hash(), handle.Handle[payload]{Offset: 16, Version: 1}.Hash())
}

func TestTypeInfo(t *testing.T) {
	a := handle.TypeInfoOf[payload]()
	b := handle.TypeInfoOf[payload]()
	c := handle.TypeInfoOf[int64]()

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.EqualValues(t, 8, a.Size)
}

func TestTypeInfoHasPointers(t *testing.T) {
	type flat struct {
		a int64
		b [4]int32
	}
	type deep struct {
		f flat
		s []int
	}

	require.False(t, handle.TypeInfoOf[flat]().HasPointers())
	require.True(t, handle.TypeInfoOf[deep]().HasPointers())
	require.True(t, handle.TypeInfoOf[string]().HasPointers())
	require.True(t, handle.TypeInfoOf[map[int]int]().HasPointers())
}
