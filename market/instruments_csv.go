package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// instrumentColumns are the header names accepted by LoadInstrumentsCSV.
// Both the camelCase names of the portfolio setting files and snake_case
// spellings are recognised.
var instrumentColumns = map[string]string{
	"vt_symbol":           "symbol",
	"symbol":              "symbol",
	"size":                "size",
	"pricetick":           "price_tick",
	"price_tick":          "price_tick",
	"variablecommission":  "variable_commission",
	"variable_commission": "variable_commission",
	"fixedcommission":     "fixed_commission",
	"fixed_commission":    "fixed_commission",
	"slippage":            "slippage",
}

// LoadInstrumentsCSV reads instrument settings from a CSV file with a header:
//
//	vt_symbol,size,priceTick,variableCommission,fixedCommission,slippage
//
// Every instrument is validated before it is returned.
func LoadInstrumentsCSV(path string) (Instruments, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instruments: %w", err)
	}
	defer f.Close()

	return ReadInstrumentsCSV(f)
}

// ReadInstrumentsCSV is LoadInstrumentsCSV over an arbitrary reader.
func ReadInstrumentsCSV(r io.Reader) (Instruments, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read instruments header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		if name, ok := instrumentColumns[strings.ToLower(strings.TrimSpace(h))]; ok {
			cols[name] = i
		}
	}
	for _, want := range []string{"symbol", "size", "price_tick"} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("instruments header missing %q column", want)
		}
	}

	out := make(Instruments)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		inst, err := parseInstrumentRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("instruments line %d: %w", line, err)
		}
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("instruments line %d: %w", line, err)
		}
		if _, dup := out[inst.Symbol]; dup {
			return nil, fmt.Errorf("instruments line %d: duplicate symbol %s", line, inst.Symbol)
		}
		out[inst.Symbol] = inst
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no instruments found")
	}
	return out, nil
}

func parseInstrumentRow(row []string, cols map[string]int) (Instrument, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(name string) (float64, error) {
		s := get(name)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("bad %s %q: %w", name, s, err)
		}
		return v, nil
	}

	inst := Instrument{Symbol: get("symbol")}

	var err error
	if inst.Size, err = num("size"); err != nil {
		return Instrument{}, err
	}
	if inst.PriceTick, err = num("price_tick"); err != nil {
		return Instrument{}, err
	}
	if inst.VariableCommission, err = num("variable_commission"); err != nil {
		return Instrument{}, err
	}
	if inst.FixedCommission, err = num("fixed_commission"); err != nil {
		return Instrument{}, err
	}
	if inst.Slippage, err = num("slippage"); err != nil {
		return Instrument{}, err
	}
	return inst, nil
}
