package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarValid(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		bar  Bar
		want bool
	}{
		{"ok", Bar{Instrument: "IF", Time: ts, Open: 10, High: 12, Low: 9, Close: 11}, true},
		{"flat", Bar{Instrument: "IF", Time: ts, Open: 10, High: 10, Low: 10, Close: 10}, true},
		{"no instrument", Bar{Time: ts, Open: 10, High: 12, Low: 9, Close: 11}, false},
		{"no time", Bar{Instrument: "IF", Open: 10, High: 12, Low: 9, Close: 11}, false},
		{"high below low", Bar{Instrument: "IF", Time: ts, Open: 10, High: 8, Low: 9, Close: 9}, false},
		{"open outside", Bar{Instrument: "IF", Time: ts, Open: 13, High: 12, Low: 9, Close: 11}, false},
		{"close outside", Bar{Instrument: "IF", Time: ts, Open: 10, High: 12, Low: 9, Close: 8}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.bar.Valid())
		})
	}
}

func TestGroupSlices(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	d3 := d1.AddDate(0, 0, 2)

	bars := []Bar{
		{Instrument: "RB", Time: d2, Close: 2},
		{Instrument: "IF", Time: d1, Close: 1},
		{Instrument: "RB", Time: d1, Close: 1},
		{Instrument: "IF", Time: d3, Close: 3},
		{Instrument: "IF", Time: d2, Close: 2},
		{Instrument: "IF", Time: d2, Close: 99}, // duplicate, dropped
	}

	slices := GroupSlices(bars)
	require.Len(t, slices, 3)

	assert.True(t, slices[0].Time.Equal(d1))
	assert.True(t, slices[1].Time.Equal(d2))
	assert.True(t, slices[2].Time.Equal(d3))

	require.Len(t, slices[0].Bars, 2)
	assert.Equal(t, "IF", slices[0].Bars[0].Instrument)
	assert.Equal(t, "RB", slices[0].Bars[1].Instrument)

	require.Len(t, slices[1].Bars, 2)
	assert.Equal(t, 2.0, slices[1].Bars[0].Close, "first duplicate wins")

	require.Len(t, slices[2].Bars, 1)
}

func TestGroupSlicesEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, GroupSlices(nil))
}

func TestMemoryFeed(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	feed := NewMemoryFeed([]Bar{
		{Instrument: "IF", Time: d1.AddDate(0, 0, 1)},
		{Instrument: "IF", Time: d1},
	})
	defer feed.Close()

	assert.Equal(t, 2, feed.Len())

	s, ok, err := feed.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, s.Time.Equal(d1))

	_, ok, err = feed.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = feed.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}
