// Package dataload reads OHLCV files into the price table the pipeline
// consumes. Timestamps must be strictly increasing and duplicate-free; dirty
// input is rejected, not repaired.
package dataload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Foresight/models"
)

// LoadCSV reads a daily OHLCV CSV with a header row of
// date,open,high,low,close,volume.
func LoadCSV(path string) ([]models.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	prices, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("file", path).Int("rows", len(prices)).Msg("loaded price series")
	return prices, nil
}

// ReadCSV parses OHLCV rows from r and validates ordering.
func ReadCSV(r io.Reader) ([]models.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if header[0] != "date" {
		return nil, fmt.Errorf("unexpected header %q, want date,open,high,low,close,volume", header[0])
	}

	var prices []models.PricePoint
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		point, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(prices); n > 0 && !prices[n-1].Timestamp.Before(point.Timestamp) {
			return nil, fmt.Errorf("line %d: timestamp %s not after previous %s",
				line,
				point.Timestamp.Format("2006-01-02"),
				prices[n-1].Timestamp.Format("2006-01-02"))
		}
		prices = append(prices, point)
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("no price rows")
	}
	return prices, nil
}

func parseRecord(record []string) (models.PricePoint, error) {
	ts, err := time.Parse("2006-01-02", record[0])
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("date: %w", err)
	}

	var fields [5]float64
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return models.PricePoint{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		if v < 0 {
			return models.PricePoint{}, fmt.Errorf("field %d: negative value %f", i+1, v)
		}
		fields[i] = v
	}

	return models.PricePoint{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}
