package model

import "errors"

// Error taxonomy shared by the pipeline stages.
var (
	// ErrDataUnavailable means an upstream provider returned nothing usable.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrParseFailure means an analysis response did not have the expected shape.
	ErrParseFailure = errors.New("parse failure")
	// ErrComputationDegraded means risk estimation fell back to default levels.
	ErrComputationDegraded = errors.New("computation degraded")
	// ErrInstrumentAborted means a hard-stop stage failed.
	ErrInstrumentAborted = errors.New("instrument aborted")
)

// ErrorKind names the taxonomy bucket of err, or "internal" when none matches.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInstrumentAborted):
		return "instrument_aborted"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrComputationDegraded):
		return "computation_degraded"
	default:
		return "internal"
	}
}
