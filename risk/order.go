package risk

// Direction: +1 long (buy), -1 short (sell)
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the direction that closes a position opened in d.
func (d Direction) Opposite() Direction {
	return -d
}

// Offset tells whether an order adds to or removes exposure.
type Offset int8

const (
	Open Offset = iota
	Close
)

func (o Offset) String() string {
	if o == Close {
		return "CLOSE"
	}
	return "OPEN"
}

// Order is a signal's request to trade a number of units.
type Order struct {
	Signal     string // id of the proposing signal
	Instrument string
	Direction  Direction
	Offset     Offset
	Price      float64
	Units      int

	// Volatility snapshot of the proposing signal, used to size the
	// instrument when it is flat.
	Volatility float64
}

// Recorder receives every accepted order. Volume is in contracts.
type Recorder interface {
	Record(instrument string, dir Direction, off Offset, price float64, volume int)
}
