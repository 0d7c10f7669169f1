package model

// Instrument is one entry of the evaluated portfolio.
type Instrument struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Market string `json:"market"`
}

// DisplayName falls back to the ticker when no name is configured.
func (i Instrument) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Ticker
}
