package radio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(&Error{Kind: ErrTimeout, Err: errors.New("timed out")}))
	require.False(t, IsTimeout(&Error{Kind: ErrSPI, Err: errors.New("spi fault")}))
	require.False(t, IsTimeout(errors.New("plain error")))
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("cs fault")
	e := &Error{Kind: ErrCS, Err: inner}
	require.Equal(t, inner, errors.Unwrap(e))
	require.Equal(t, inner.Error(), e.Error())
}
