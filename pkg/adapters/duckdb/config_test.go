package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]string
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil options returns defaults",
			input: nil,
			want:  &Params{SampleSize: -1},
		},
		{
			name:  "memory limit only",
			input: map[string]string{"memory_limit": "2GB"},
			want:  &Params{MemoryLimit: "2GB", SampleSize: -1},
		},
		{
			name:  "numeric strings are decoded",
			input: map[string]string{"threads": "4", "sample_size": "20480"},
			want:  &Params{Threads: 4, SampleSize: 20480},
		},
		{
			name:    "non numeric threads",
			input:   map[string]string{"threads": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParams_SettingsSQL(t *testing.T) {
	p := &Params{MemoryLimit: "1GB", Threads: 2}
	assert.Equal(t, []string{"SET memory_limit = '1GB'", "SET threads = 2"}, p.settingsSQL())
	assert.Empty(t, (&Params{}).settingsSQL())
}
