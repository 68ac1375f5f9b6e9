package geocell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRange(t *testing.T) {
	_, err := New(91, 0)
	assert.Error(t, err)

	_, err = New(0, 181)
	assert.Error(t, err)

	gc, err := New(32, -118)
	require.NoError(t, err)
	assert.Equal(t, 32, gc.Latitude())
	assert.Equal(t, -118, gc.Longitude())
}

func TestLonExtentDegreesZoneTable(t *testing.T) {
	cases := []struct {
		lat  int
		want int
	}{
		{0, 1}, {49, 1}, {-49, 1},
		{50, 2}, {-50, 1}, {69, 2},
		{70, 3}, {74, 3},
		{75, 4}, {79, 4},
		{80, 6}, {88, 6},
		{89, 12},
		{-80, 4}, {-75, 3}, {-70, 2}, {-89, 6}, {-90, 12},
	}
	for _, c := range cases {
		gc, err := New(c.lat, 0)
		require.NoError(t, err)
		got, err := gc.LonExtentDegrees()
		require.NoError(t, err)
		assert.Equalf(t, c.want, got, "lat=%d", c.lat)
	}
}

func TestDirectoryNames(t *testing.T) {
	gc, err := New(32, -118)
	require.NoError(t, err)
	assert.Equal(t, "N32", gc.LatitudeDirectoryName())
	assert.Equal(t, "W118", gc.LongitudeDirectoryName())

	gc2, err := New(-5, 7)
	require.NoError(t, err)
	assert.Equal(t, "S5", gc2.LatitudeDirectoryName())
	assert.Equal(t, "E007", gc2.LongitudeDirectoryName())
}

func TestParseLatLonFromFilenameRoundTrip(t *testing.T) {
	lat, ok := ParseLatFromFilename("N32rest")
	require.True(t, ok)
	assert.Equal(t, 32, lat)

	lon, ok := ParseLonFromFilename("W118rest")
	require.True(t, ok)
	assert.Equal(t, -118, lon)

	_, ok = ParseLatFromFilename("X32")
	assert.False(t, ok)

	_, ok = ParseLonFromFilename("E")
	assert.False(t, ok)
}
