package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
)

// CSVSource reads "time,value" rows from a file, one point per row.
// Timestamps are RFC 3339 or unix milliseconds; a header row is skipped.
// The file is opened lazily on the first Next so constructing sources for
// a large universe stays cheap, and the open is retried because network
// filesystems occasionally fail transiently.
type CSVSource struct {
	path   string
	symbol string

	file   *os.File
	reader *csv.Reader
	opened bool
	row    int

	lastTime time.Time
}

// NewCSVSource creates a source reading the file at path. symbol is
// stamped on every point.
func NewCSVSource(path, symbol string) *CSVSource {
	return &CSVSource{path: path, symbol: symbol}
}

// Next returns the next valid row as a data point. Malformed rows and
// out-of-order timestamps are skipped with ErrInvalidDataPoint semantics
// folded into the skip; the stream stays monotone.
func (s *CSVSource) Next() (core.DataPoint, error) {
	if !s.opened {
		if err := s.open(); err != nil {
			return core.DataPoint{}, err
		}
	}

	for {
		record, err := s.reader.Read()
		if err == io.EOF {
			return core.DataPoint{}, apperrors.ErrSourceExhausted
		}
		if err != nil {
			return core.DataPoint{}, fmt.Errorf("reading %s: %w", s.path, err)
		}
		s.row++

		point, err := s.parse(record)
		if err != nil {
			if s.row == 1 {
				// Header row
				continue
			}
			continue
		}
		if point.Time.Before(s.lastTime) {
			continue
		}
		s.lastTime = point.Time
		return point, nil
	}
}

// Close closes the underlying file
func (s *CSVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *CSVSource) open() error {
	policy := retrypolicy.NewBuilder[*os.File]().
		HandleIf(func(_ *os.File, err error) bool {
			if err == nil {
				return false
			}
			// Missing files are permanent, everything else may be transient
			return !errors.Is(err, fs.ErrNotExist)
		}).
		WithBackoff(50*time.Millisecond, 500*time.Millisecond).
		WithMaxRetries(3).
		Build()

	file, err := failsafe.With(policy).Get(func() (*os.File, error) {
		return os.Open(s.path)
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}

	s.file = file
	s.reader = csv.NewReader(file)
	s.reader.FieldsPerRecord = -1
	s.opened = true
	return nil
}

func (s *CSVSource) parse(record []string) (core.DataPoint, error) {
	if len(record) < 2 {
		return core.DataPoint{}, fmt.Errorf("%w: row %d has %d fields", apperrors.ErrInvalidDataPoint, s.row, len(record))
	}

	t, err := parseTime(record[0])
	if err != nil {
		return core.DataPoint{}, fmt.Errorf("%w: row %d: %v", apperrors.ErrInvalidDataPoint, s.row, err)
	}

	value, err := decimal.NewFromString(record[1])
	if err != nil {
		return core.DataPoint{}, fmt.Errorf("%w: row %d: %v", apperrors.ErrInvalidDataPoint, s.row, err)
	}

	return core.DataPoint{Symbol: s.symbol, Time: t, Value: value}, nil
}

func parseTime(field string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, field); err == nil {
		return t.UTC(), nil
	}
	if millis, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", field)
}
