package ipn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Endpoint
		wantErr bool
	}{
		{"node and service", "ipn://100.1", Endpoint{100, 1}, false},
		{"service zero is valid", "ipn://100.0", Endpoint{100, 0}, false},
		{"service omitted defaults to zero", "ipn://100", Endpoint{100, 0}, false},
		{"missing prefix", "100.1", Endpoint{}, true},
		{"garbage node", "ipn://abc.1", Endpoint{}, true},
		{"garbage service", "ipn://100.abc", Endpoint{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "ipn://100.1", Endpoint{100, 1}.String())
	assert.Equal(t, "ipn://100.0", Endpoint{100, 0}.String())
}

func TestIsZero(t *testing.T) {
	assert.True(t, Endpoint{}.IsZero())
	assert.False(t, Endpoint{Node: 1}.IsZero())
}
