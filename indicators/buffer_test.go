package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/turtle/market"
)

func bar(h, l, c float64) market.Bar {
	return market.Bar{
		Instrument: "TEST",
		Time:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Open:       c,
		High:       h,
		Low:        l,
		Close:      c,
	}
}

func TestNewBuffer(t *testing.T) {
	t.Parallel()

	_, err := NewBuffer(10, 0)
	assert.Error(t, err)

	b, err := NewBuffer(10, 5)
	require.NoError(t, err)
	assert.Len(t, b.high, DefaultCapacity)

	b, err = NewBuffer(0, 100)
	require.NoError(t, err)
	assert.Len(t, b.high, 100)
}

func TestBufferReady(t *testing.T) {
	t.Parallel()

	b, err := NewBuffer(0, 3)
	require.NoError(t, err)

	assert.False(t, b.Ready())
	assert.False(t, b.Push(bar(2, 1, 1.5)))
	assert.False(t, b.Push(bar(2, 1, 1.5)))
	assert.True(t, b.Push(bar(2, 1, 1.5)))
	assert.True(t, b.Ready())
	assert.Equal(t, 3, b.Len())
}

func TestBufferDonchian(t *testing.T) {
	t.Parallel()

	b, err := NewBuffer(0, 1)
	require.NoError(t, err)

	h, l := b.Donchian(3)
	assert.Equal(t, 0.0, h)
	assert.Equal(t, 0.0, l)

	b.Push(bar(10, 5, 7))
	b.Push(bar(12, 8, 9))
	b.Push(bar(11, 6, 10))
	b.Push(bar(9, 7, 8))

	tests := []struct {
		name     string
		n        int
		wantHigh float64
		wantLow  float64
	}{
		{"last bar only", 1, 9, 7},
		{"last two", 2, 11, 6},
		{"last three", 3, 12, 6},
		{"all", 4, 12, 5},
		{"longer than held", 10, 12, 5},
	}

	for _, tt := range tests {
		h, l := b.Donchian(tt.n)
		assert.Equal(t, tt.wantHigh, h, tt.name)
		assert.Equal(t, tt.wantLow, l, tt.name)
	}
}

func TestBufferWrapsAround(t *testing.T) {
	t.Parallel()

	b, err := NewBuffer(0, 1)
	require.NoError(t, err)

	// one spike, then enough bars to push it out of the ring
	b.Push(bar(1000, 1, 500))
	for i := 0; i < DefaultCapacity; i++ {
		b.Push(bar(11, 9, 10))
	}

	assert.Equal(t, DefaultCapacity, b.Len())
	h, l := b.Donchian(DefaultCapacity)
	assert.Equal(t, 11.0, h)
	assert.Equal(t, 9.0, l)

	// the spike is gone from the true ranges too
	assert.InDelta(t, 2.0, b.ATR(20), 1e-12)
	assert.InDelta(t, 2.0, b.ATR(DefaultCapacity), 1e-12)
}

func TestBufferATR(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		assert.Equal(t, 0.0, b.ATR(5))
	})

	t.Run("constant range", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			b.Push(bar(102, 98, 100))
		}
		assert.InDelta(t, 4.0, b.ATR(20), 1e-12)
		assert.InDelta(t, 4.0, b.ATR(5), 1e-12)
	})

	t.Run("single bar", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		b.Push(bar(10, 8, 9))
		assert.Equal(t, 0.0, b.ATR(3))
	})

	t.Run("first bar only supplies a close", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		b.Push(bar(10, 8, 9))   // no true range
		b.Push(bar(15, 11, 14)) // TR max(4, 6, 2) = 6
		assert.InDelta(t, 6.0, b.ATR(2), 1e-12)
	})

	t.Run("wilder smoothing after seed", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		b.Push(bar(10, 8, 9))
		b.Push(bar(11, 9, 10))  // TR 2
		b.Push(bar(16, 10, 15)) // TR 6
		b.Push(bar(17, 14, 16)) // TR 3
		// seed (2+6)/2 = 4, then (4*1 + 3)/2 = 3.5
		assert.InDelta(t, 3.5, b.ATR(2), 1e-12)
	})

	t.Run("wide first bar is not averaged in", func(t *testing.T) {
		t.Parallel()
		b, err := NewBuffer(0, 1)
		require.NoError(t, err)
		b.Push(bar(120, 80, 100))
		for i := 0; i < 25; i++ {
			b.Push(bar(101, 99, 100))
		}
		assert.InDelta(t, 2.0, b.ATR(20), 1e-12)
	})
}

func TestBufferImplementsWindow(t *testing.T) {
	t.Parallel()
	var _ Window = (*Buffer)(nil)
}
