// Package feed loads candle streams and calendar-spread reference data
// from CSV files. Malformed records are rejected at ingestion with a
// descriptive error rather than surfacing later inside the state
// machine.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/davidhsu/execsim/internal/core"
)

// candle files: timestamp,open,high,low,close,volume,symbol
// spread files: timestamp,from_symbol,to_symbol,spread

// LoadCandles reads an ascending candle stream from a CSV file. The
// stream must be sorted by timestamp with no duplicate timestamps per
// symbol.
func LoadCandles(path string) ([]core.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrDataLoad, err)
	}
	defer f.Close()
	return ReadCandles(f, path)
}

// ReadCandles parses candles from r. name is used in error messages.
func ReadCandles(r io.Reader, name string) ([]core.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s: reading header: %w", name, err))
	}
	if len(header) != 7 || !strings.EqualFold(header[0], "timestamp") {
		return nil, core.WrapError(core.ErrDataLoad,
			fmt.Errorf("%s: expected header timestamp,open,high,low,close,volume,symbol", name))
	}

	var (
		out     []core.Candle
		last    time.Time
		lastSym = make(map[string]time.Time)
		line    = 1
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s line %d: %w", name, line, err))
		}

		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, core.WrapError(core.ErrBadCandle, fmt.Errorf("%s line %d: %w", name, line, err))
		}
		nums := make([]float64, 4)
		for i := 0; i < 4; i++ {
			nums[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, core.WrapError(core.ErrBadCandle, fmt.Errorf("%s line %d: %w", name, line, err))
			}
		}
		vol, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, core.WrapError(core.ErrBadCandle, fmt.Errorf("%s line %d: %w", name, line, err))
		}

		c := core.Candle{
			Symbol: strings.TrimSpace(rec[6]),
			Open:   nums[0],
			High:   nums[1],
			Low:    nums[2],
			Close:  nums[3],
			Volume: vol,
			Time:   ts,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		if c.Time.Before(last) {
			return nil, core.WrapError(core.ErrNonMonotonic,
				fmt.Errorf("%s line %d: %s before previous bar", name, line, c.Time.Format(time.RFC3339)))
		}
		if prev, ok := lastSym[c.Symbol]; ok && c.Time.Equal(prev) {
			return nil, core.WrapError(core.ErrNonMonotonic,
				fmt.Errorf("%s line %d: duplicate timestamp for %s", name, line, c.Symbol))
		}
		last = c.Time
		lastSym[c.Symbol] = c.Time
		out = append(out, c)
	}
	return out, nil
}

// LoadSpreads reads calendar-spread reference records from a CSV file.
func LoadSpreads(path string) ([]core.CalendarSpread, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.WrapError(core.ErrDataLoad, err)
	}
	defer f.Close()
	return ReadSpreads(f, path)
}

// ReadSpreads parses calendar-spread records from r.
func ReadSpreads(r io.Reader, name string) ([]core.CalendarSpread, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s: reading header: %w", name, err))
	}
	if len(header) != 4 || !strings.EqualFold(header[0], "timestamp") {
		return nil, core.WrapError(core.ErrDataLoad,
			fmt.Errorf("%s: expected header timestamp,from_symbol,to_symbol,spread", name))
	}

	var out []core.CalendarSpread
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s line %d: %w", name, line, err))
		}
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s line %d: %w", name, line, err))
		}
		val, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s line %d: %w", name, line, err))
		}
		from := strings.TrimSpace(rec[1])
		to := strings.TrimSpace(rec[2])
		if from == "" || to == "" {
			return nil, core.WrapError(core.ErrDataLoad, fmt.Errorf("%s line %d: empty symbol", name, line))
		}
		out = append(out, core.CalendarSpread{Time: ts, FromSymbol: from, ToSymbol: to, Value: val})
	}
	return out, nil
}

// parseTime accepts RFC3339 or unix seconds.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
