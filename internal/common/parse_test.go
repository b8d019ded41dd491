package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMutez(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "empty string", input: "", want: 0},
		{name: "positive", input: "1250000", want: 1250000},
		{name: "negative", input: "-512000000", want: -512000000},
		{name: "invalid", input: "12tz", wantErr: true},
		{name: "hex is rejected", input: "0x10", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMutez(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMBConversions(t *testing.T) {
	require.Equal(t, uint64(3*1024*1024), MBToBytes(3))
	require.Equal(t, uint64(3), BytesToMB(3*1024*1024+5))
	require.Equal(t, "info", ToLowerWithTrim("  INFO "))
}
