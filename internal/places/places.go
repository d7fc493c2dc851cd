// Package places loads the location list from its flat-file source and
// fingerprints the file content for cache invalidation.
package places

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rainmatrix/rainmatrix/internal/forecast"
)

// ErrMissingFile is returned when the location source does not exist.
var ErrMissingFile = errors.New("places file not found")

// FormatError reports a malformed line in the location source.
type FormatError struct {
	Path string
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s line %d: %v (expected: Label, lat, lon)", e.Path, e.Line, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Load parses the location source at path. Each non-blank, non-comment line
// must split into exactly three comma-separated fields: label, latitude,
// longitude. Labels must be unique. The returned Signature fingerprints the
// file content, so any edit invalidates previously cached payloads.
func Load(path string) ([]forecast.Location, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, "", fmt.Errorf("read places file: %w", err)
	}

	locations, err := parse(path, data)
	if err != nil {
		return nil, "", err
	}

	return locations, Signature(data), nil
}

// Signature returns a short content fingerprint of the location source.
func Signature(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func parse(path string, data []byte) ([]forecast.Location, error) {
	var locations []forecast.Location
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, &FormatError{Path: path, Line: lineno, Err: fmt.Errorf("%d fields", len(parts))}
		}

		label := strings.TrimSpace(parts[0])
		if label == "" {
			return nil, &FormatError{Path: path, Line: lineno, Err: errors.New("empty label")}
		}
		if _, ok := seen[label]; ok {
			return nil, &FormatError{Path: path, Line: lineno, Err: fmt.Errorf("duplicate label %q", label)}
		}
		seen[label] = struct{}{}

		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, &FormatError{Path: path, Line: lineno, Err: fmt.Errorf("latitude: %w", err)}
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, &FormatError{Path: path, Line: lineno, Err: fmt.Errorf("longitude: %w", err)}
		}

		locations = append(locations, forecast.Location{Label: label, Lat: lat, Lon: lon})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan places file: %w", err)
	}

	return locations, nil
}
