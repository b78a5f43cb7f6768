package indicators

import (
	"fmt"
	"math"

	ta "github.com/thrasher-corp/gct-ta/indicators"

	"github.com/rustyeddy/turtle/market"
)

// DefaultCapacity is the number of bars a Buffer keeps when the caller
// asks for less. ATR smoothing runs over the whole buffer, so a longer
// history than the lookback gives a steadier value.
const DefaultCapacity = 60

// Buffer is a fixed-size circular Window.
type Buffer struct {
	warmup int

	high  []float64
	low   []float64
	close []float64

	head  int // next write position
	count int // bars held, <= capacity
}

// NewBuffer returns a Buffer holding up to capacity bars that becomes ready
// once warmup bars have been pushed.
func NewBuffer(capacity, warmup int) (*Buffer, error) {
	if warmup <= 0 {
		return nil, fmt.Errorf("warmup must be positive, got %d", warmup)
	}
	if capacity < DefaultCapacity {
		capacity = DefaultCapacity
	}
	if capacity < warmup {
		capacity = warmup
	}
	return &Buffer{
		warmup: warmup,
		high:   make([]float64, capacity),
		low:    make([]float64, capacity),
		close:  make([]float64, capacity),
	}, nil
}

func (b *Buffer) Push(bar market.Bar) bool {
	capacity := len(b.high)
	if b.count < capacity {
		b.count++
	}

	b.high[b.head] = bar.High
	b.low[b.head] = bar.Low
	b.close[b.head] = bar.Close
	b.head = (b.head + 1) % capacity

	return b.Ready()
}

func (b *Buffer) Ready() bool {
	return b.count >= b.warmup
}

// Len returns the number of bars held.
func (b *Buffer) Len() int {
	return b.count
}

// at maps i in [0, count) from oldest to newest onto the ring.
func (b *Buffer) at(i int) int {
	capacity := len(b.high)
	return (b.head - b.count + i + capacity) % capacity
}

func (b *Buffer) Donchian(n int) (high, low float64) {
	if b.count == 0 || n <= 0 {
		return 0, 0
	}
	if n > b.count {
		n = b.count
	}

	high = math.Inf(-1)
	low = math.Inf(1)
	for i := b.count - n; i < b.count; i++ {
		j := b.at(i)
		high = math.Max(high, b.high[j])
		low = math.Min(low, b.low[j])
	}
	return high, low
}

// ATR is the TA-Lib average true range over the bars held, smoothed with
// Wilder's method. The oldest bar only supplies a previous close, so with
// fewer than n+1 bars held the period shrinks to what is available.
func (b *Buffer) ATR(n int) float64 {
	if n <= 0 || b.count < 2 {
		return 0
	}
	if n > b.count-1 {
		n = b.count - 1
	}

	high := make([]float64, b.count)
	low := make([]float64, b.count)
	closes := make([]float64, b.count)
	for i := 0; i < b.count; i++ {
		j := b.at(i)
		high[i], low[i], closes[i] = b.high[j], b.low[j], b.close[j]
	}

	atr := ta.ATR(high, low, closes, n)
	return atr[len(atr)-1]
}
