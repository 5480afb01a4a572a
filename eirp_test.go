package lorawan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetTXParamSetupEIRPIndex(t *testing.T) {
	tests := []struct {
		eirp float32
		want uint8
	}{
		{8, 0},
		{9, 0},
		{10, 1},
		{13, 3},
		{36, 15},
		{100, 15},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, GetTXParamSetupEIRPIndex(tt.eirp))
	}
}

func TestGetTXParamSetupEIRP(t *testing.T) {
	eirp, err := GetTXParamSetupEIRP(0)
	require.NoError(t, err)
	require.Equal(t, float32(8), eirp)

	eirp, err = GetTXParamSetupEIRP(15)
	require.NoError(t, err)
	require.Equal(t, float32(36), eirp)

	_, err = GetTXParamSetupEIRP(16)
	require.Error(t, err)
}
