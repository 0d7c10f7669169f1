package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"PortfolioSentinel/internal/model"
)

// File is the on-disk instrument list. Holdings, watched names and currency
// pairs are analyzed in that order.
type File struct {
	Portfolio []model.Instrument `json:"portfolio"`
	Watchlist []model.Instrument `json:"watchlist"`
	Forex     []model.Instrument `json:"forex"`
}

// Instruments concatenates the three lists, dropping entries without a
// ticker and repeated tickers.
func (f *File) Instruments() []model.Instrument {
	seen := make(map[string]bool)
	var out []model.Instrument
	for _, group := range [][]model.Instrument{f.Portfolio, f.Watchlist, f.Forex} {
		for _, inst := range group {
			inst.Ticker = strings.TrimSpace(inst.Ticker)
			if inst.Ticker == "" || seen[inst.Ticker] {
				continue
			}
			seen[inst.Ticker] = true
			out = append(out, inst)
		}
	}
	return out
}

// Load reads the instrument list from a JSON file.
func Load(path string) ([]model.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse portfolio file %s: %w", path, err)
	}
	instruments := f.Instruments()
	if len(instruments) == 0 {
		return nil, errors.New("portfolio file lists no instruments")
	}
	return instruments, nil
}

// Find returns the instrument with ticker, or a bare instrument when the
// ticker is not in the list.
func Find(instruments []model.Instrument, ticker string) model.Instrument {
	for _, inst := range instruments {
		if strings.EqualFold(inst.Ticker, ticker) {
			return inst
		}
	}
	return model.Instrument{Ticker: ticker, Name: ticker}
}
