package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Preference
		err  bool
	}{
		{in: "", want: Same},
		{in: "same", want: Same},
		{in: "Same as Griffin", want: Same},
		{in: " Dark ", want: Dark},
		{in: "LIGHT", want: Light},
		{in: "solarized", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsDark(t *testing.T) {
	assert.True(t, Dark.IsDark(false))
	assert.False(t, Light.IsDark(true))
	assert.True(t, Same.IsDark(true))
	assert.False(t, Same.IsDark(false))
}

func TestProviderResolve(t *testing.T) {
	p := NewProvider("")
	assert.Equal(t, Same, p.Preference())

	dark, err := p.Resolve("")
	require.NoError(t, err)
	assert.False(t, dark)

	p.SetHostDark(true)
	assert.True(t, p.HostDark())
	dark, err = p.Resolve("")
	require.NoError(t, err)
	assert.True(t, dark)

	dark, err = p.Resolve("light")
	require.NoError(t, err)
	assert.False(t, dark, "override wins over the host theme")

	p.SetPreference(Dark)
	p.SetHostDark(false)
	dark, err = p.Resolve("")
	require.NoError(t, err)
	assert.True(t, dark)

	_, err = p.Resolve("neon")
	assert.Error(t, err)
}
