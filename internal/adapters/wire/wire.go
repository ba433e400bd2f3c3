// Package wire reads and writes the JSON records exchanged with callers:
// one metrics object in, one {"ratingDelta": n} object out.
package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/okian/puzzlerating/internal/domain/rating"
)

// JSON keys of the metrics record.
const (
	KeySuccessRate            = "successRate"
	KeyAvgHints               = "avgHints"
	KeyAvgAttempts            = "avgAttempts"
	KeyAvgRatingDiff          = "avgRatingDiff"
	KeyHighRatedSuccesses     = "highRatedSuccesses"
	KeyVeryHighRatedSuccesses = "veryHighRatedSuccesses"
)

// Record is the serialized form of rating.Metrics.
type Record struct {
	SuccessRate            float64 `json:"successRate"`
	AvgHints               float64 `json:"avgHints"`
	AvgAttempts            float64 `json:"avgAttempts"`
	AvgRatingDiff          float64 `json:"avgRatingDiff"`
	HighRatedSuccesses     int     `json:"highRatedSuccesses"`
	VeryHighRatedSuccesses int     `json:"veryHighRatedSuccesses"`
}

// NewRecord converts m to its wire form.
func NewRecord(m rating.Metrics) Record {
	return Record{
		SuccessRate:            m.SuccessRate,
		AvgHints:               m.AvgHints,
		AvgAttempts:            m.AvgAttempts,
		AvgRatingDiff:          m.AvgRatingDiff,
		HighRatedSuccesses:     m.HighRatedSuccesses,
		VeryHighRatedSuccesses: m.VeryHighRatedSuccesses,
	}
}

// Metrics converts the record back to the domain type.
func (r Record) Metrics() rating.Metrics {
	return rating.Metrics{
		SuccessRate:            r.SuccessRate,
		AvgHints:               r.AvgHints,
		AvgAttempts:            r.AvgAttempts,
		AvgRatingDiff:          r.AvgRatingDiff,
		HighRatedSuccesses:     r.HighRatedSuccesses,
		VeryHighRatedSuccesses: r.VeryHighRatedSuccesses,
	}
}

// Response is the result record.
type Response struct {
	RatingDelta int               `json:"ratingDelta"`
	Breakdown   *rating.Breakdown `json:"breakdown,omitempty"`
}

// Error codes reported in error bodies.
const (
	CodeParseError   = "parse_error"
	CodeInvalidInput = "invalid_input"
	CodeCancelled    = "cancelled"
	CodeInternal     = "internal_error"
)

// ErrorBody describes why a record produced no delta.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Line is one batch result: either a delta or an error.
type Line struct {
	RatingDelta *int       `json:"ratingDelta,omitempty"`
	Error       *ErrorBody `json:"error,omitempty"`
}

// ErrorCode classifies err into one of the Code constants.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, rating.ErrParse):
		return CodeParseError
	case errors.Is(err, rating.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// EncodeLine writes one batch result line. A nil err writes the delta.
func EncodeLine(w io.Writer, delta int, err error) error {
	var l Line
	if err != nil {
		l.Error = &ErrorBody{Code: ErrorCode(err), Message: err.Error()}
	} else {
		l.RatingDelta = &delta
	}
	if encErr := json.NewEncoder(w).Encode(l); encErr != nil {
		return fmt.Errorf("write result line: %w", encErr)
	}
	return nil
}

// Decode reads exactly one metrics object from r. Every field is mandatory.
// Unparsable input wraps rating.ErrParse; missing, null or non-numeric
// fields wrap rating.ErrInvalidInput. Unknown keys are ignored.
func Decode(r io.Reader) (rating.Metrics, error) {
	dec := json.NewDecoder(r)

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return rating.Metrics{}, fmt.Errorf("%w: empty input", rating.ErrParse)
		}
		return rating.Metrics{}, fmt.Errorf("%w: %w", rating.ErrParse, err)
	}
	if raw == nil {
		return rating.Metrics{}, fmt.Errorf("%w: expected a JSON object", rating.ErrParse)
	}
	switch err := dec.Decode(&struct{}{}); {
	case errors.Is(err, io.EOF):
	case err != nil:
		return rating.Metrics{}, fmt.Errorf("%w: unexpected data after the metrics object: %w", rating.ErrParse, err)
	default:
		return rating.Metrics{}, fmt.Errorf("%w: unexpected data after the metrics object", rating.ErrParse)
	}

	var (
		m   rating.Metrics
		err error
	)
	if m.SuccessRate, err = number(raw, KeySuccessRate); err != nil {
		return rating.Metrics{}, err
	}
	if m.AvgHints, err = number(raw, KeyAvgHints); err != nil {
		return rating.Metrics{}, err
	}
	if m.AvgAttempts, err = number(raw, KeyAvgAttempts); err != nil {
		return rating.Metrics{}, err
	}
	if m.AvgRatingDiff, err = number(raw, KeyAvgRatingDiff); err != nil {
		return rating.Metrics{}, err
	}
	if m.HighRatedSuccesses, err = count(raw, KeyHighRatedSuccesses); err != nil {
		return rating.Metrics{}, err
	}
	if m.VeryHighRatedSuccesses, err = count(raw, KeyVeryHighRatedSuccesses); err != nil {
		return rating.Metrics{}, err
	}
	return m, nil
}

// Encode writes {"ratingDelta": delta} followed by a newline.
func Encode(w io.Writer, delta int) error {
	return write(w, Response{RatingDelta: delta})
}

// EncodeExplained writes the delta together with its stage breakdown.
func EncodeExplained(w io.Writer, b rating.Breakdown) error {
	return write(w, Response{RatingDelta: b.Delta, Breakdown: &b})
}

func write(w io.Writer, resp Response) error {
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func number(raw map[string]json.RawMessage, key string) (float64, error) {
	val, ok := raw[key]
	if !ok || string(bytes.TrimSpace(val)) == "null" {
		return 0, fmt.Errorf("%w: missing field %q", rating.ErrInvalidInput, key)
	}
	var f float64
	if err := json.Unmarshal(val, &f); err != nil {
		return 0, fmt.Errorf("%w: field %q must be a number", rating.ErrInvalidInput, key)
	}
	return f, nil
}

func count(raw map[string]json.RawMessage, key string) (int, error) {
	f, err := number(raw, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: field %q must be a whole number", rating.ErrInvalidInput, key)
	}
	return int(f), nil
}
