// Package sidecar parses Google Takeout description files into the
// normalized record the rest of the pipeline consumes.
package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/axatjpr/photometa-restore/core"
)

// ErrMalformed marks a sidecar whose required structure cannot be parsed.
var ErrMalformed = errors.New("malformed sidecar")

// unixSeconds tolerates both the usual string-encoded timestamp and the
// bare number some older exports contain.
type unixSeconds int64

func (u *unixSeconds) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*u = unixSeconds(n)
	return nil
}

type takeoutTime struct {
	Timestamp unixSeconds `json:"timestamp"`
	Formatted string      `json:"formatted"`
}

type takeoutGeo struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// takeoutSidecar mirrors the fields of interest in a Takeout JSON file.
// Everything else in the document is ignored.
type takeoutSidecar struct {
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	PhotoTakenTime takeoutTime `json:"photoTakenTime"`
	CreationTime   takeoutTime `json:"creationTime"`
	GeoData        takeoutGeo  `json:"geoData"`
	GeoDataExif    takeoutGeo  `json:"geoDataExif"`
}

// Parse builds a SidecarRecord from raw sidecar content.
//
// A present-but-zero (or negative) timestamp is absent, not an error; a
// record without a timestamp still matches files, it just cannot restore
// times. Only structural failures and an empty title are malformed.
func Parse(data []byte) (core.SidecarRecord, error) {
	var raw takeoutSidecar
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.SidecarRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Title == "" {
		return core.SidecarRecord{}, fmt.Errorf("%w: missing title", ErrMalformed)
	}

	rec := core.SidecarRecord{
		Title:       raw.Title,
		Description: raw.Description,
	}

	if ts := int64(raw.PhotoTakenTime.Timestamp); ts > 0 {
		rec.TakenUnix = ts
	} else if ts := int64(raw.CreationTime.Timestamp); ts > 0 {
		// Older exports omit photoTakenTime for uploads.
		rec.TakenUnix = ts
	}

	geo := core.GeoData(raw.GeoData)
	if geo.Absent() {
		geo = core.GeoData(raw.GeoDataExif)
	}
	if !geo.Absent() {
		rec.Geo = geo
	}

	return rec, nil
}

// Load reads and parses one sidecar file.
func Load(path string) (core.SidecarRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.SidecarRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Parse(data)
}
