// Package id issues ULIDs: time-sortable identifiers for runs and fills.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator issues monotonic ULIDs. IDs made for the same millisecond stay
// in increasing order. It is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
}

// NewGenerator returns a Generator whose entropy comes from seed. Two
// generators with the same seed issue the same IDs for the same times, which
// keeps replayed backtests reproducible.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// At returns a ULID stamped with t.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// only when t is before the epoch, after year 10889, or the
		// monotonic entropy overflows within one millisecond
		panic(err)
	}
	return id.String()
}

var std = NewGenerator(randomSeed())

func randomSeed() int64 {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return seed
}

// New returns a ULID stamped with the current time.
func New() string {
	return std.At(time.Now())
}

// Time returns the timestamp encoded in a ULID string.
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()).UTC(), nil
}
