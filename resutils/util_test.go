package resutils_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quillback/stockpile/resutils"
)

func TestAlignUp(t *testing.T) {
	require.EqualValues(t, 0, resutils.AlignUp(0, 16))
	require.EqualValues(t, 16, resutils.AlignUp(1, 16))
	require.EqualValues(t, 16, resutils.AlignUp(16, 16))
	require.EqualValues(t, 32, resutils.AlignUp(17, 16))
}

func TestAlignDown(t *testing.T) {
	require.EqualValues(t, 0, resutils.AlignDown(15, 16))
	require.EqualValues(t, 16, resutils.AlignDown(16, 16))
	require.EqualValues(t, 16, resutils.AlignDown(31, 16))
}

func TestNextPow2(t *testing.T) {
	require.EqualValues(t, 1, resutils.NextPow2(0))
	require.EqualValues(t, 1, resutils.NextPow2(1))
	require.EqualValues(t, 2, resutils.NextPow2(2))
	require.EqualValues(t, 4, resutils.NextPow2(3))
	require.EqualValues(t, 128, resutils.NextPow2(100))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, resutils.CheckPow2(uint(64), "alignment"))

	err := resutils.CheckPow2(uint(48), "alignment")
	require.Error(t, err)
	require.True(t, errors.Is(err, resutils.PowerOfTwoError))

	err = resutils.CheckPow2(uint(0), "alignment")
	require.True(t, errors.Is(err, resutils.PowerOfTwoError))
}
