package resutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uintptr | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number == 0 || number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T Number](value T, alignment T) T {
	return (value + alignment - 1) & ^(alignment - 1)
}

func AlignDown[T Number](value T, alignment T) T {
	return value & ^(alignment - 1)
}

// NextPow2 returns the smallest power of two that is greater than or equal to value.
// NextPow2(0) == 1.
func NextPow2[T Number](value T) T {
	var pow2 T = 1
	for pow2 < value {
		pow2 <<= 1
	}
	return pow2
}
