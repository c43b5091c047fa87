package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ImportStats counts the outcome of Import.
type ImportStats struct {
	Inserted   int
	Duplicates int
	Skipped    int
}

// Import feeds every line of a JSONL archive (see storage.ExportJSONL)
// through Handle, so archived messages get the same validation and
// retention as live ones. Lines that do not decode or fail validation are
// skipped; a storage failure stops the import.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			stats.Skipped++
			s.log.Warn().Err(err).Int("line", line).Msg("skipping undecodable line")
			continue
		}
		res, err := s.Handle(ctx, ev)
		switch {
		case errors.Is(err, ErrMalformedEvent):
			stats.Skipped++
		case err != nil:
			return stats, fmt.Errorf("line %d: %w", line, err)
		case res.Inserted:
			stats.Inserted++
		default:
			stats.Duplicates++
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	return stats, nil
}

// ImportFile is Import reading from the file at path.
func (s *Service) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open read: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}
