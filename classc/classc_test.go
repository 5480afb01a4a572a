package classc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewStartsInContinuousRX2(t *testing.T) {
	s := New()
	require.Equal(t, ContinuousRX2, s.State())
	require.True(t, s.NextDeadline().IsZero())
}

func TestBeginEndTXCycle(t *testing.T) {
	s := New()
	s.BeginTX()
	require.Equal(t, Transmitting, s.State())

	txEnd := time.Unix(0, 0)
	s.EndTX(txEnd, time.Second, 100*time.Millisecond)
	require.Equal(t, RX1Open, s.State())
	require.Equal(t, txEnd.Add(time.Second+100*time.Millisecond), s.NextDeadline())
}

func TestAdvanceResumesRX2OnTimeoutOrReception(t *testing.T) {
	s := New()
	s.BeginTX()
	txEnd := time.Unix(0, 0)
	s.EndTX(txEnd, time.Second, 100*time.Millisecond)

	require.False(t, s.Advance(txEnd, false))
	require.Equal(t, RX1Open, s.State())

	require.True(t, s.Advance(s.NextDeadline(), false))
	require.Equal(t, ContinuousRX2, s.State())
}

func TestAdvanceNoOpOutsideRX1Open(t *testing.T) {
	s := New()
	require.False(t, s.Advance(time.Now(), true))
	require.Equal(t, ContinuousRX2, s.State())
}
