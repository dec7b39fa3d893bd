// Package core defines the shared types, format registry, and configuration
// for PhotoMeta Restore.
package core

import (
	"sort"
	"time"
)

// GeoData holds a geolocation read from a sidecar.
//
// Google Photos uses all-zero coordinates as the "no location" sentinel,
// so (0, 0) is treated as absent rather than as a real point.
type GeoData struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Absent reports whether the location is the no-location sentinel.
func (g GeoData) Absent() bool {
	return g.Latitude == 0 && g.Longitude == 0
}

// SidecarRecord is one parsed sidecar description file.
// It is built once per sidecar and never mutated afterwards.
type SidecarRecord struct {
	Title       string // declared original filename, never empty
	Description string // informational only
	TakenUnix   int64  // seconds since epoch; 0 means absent
	Geo         GeoData
}

// HasTimestamp reports whether the record can drive timestamp restoration.
func (r SidecarRecord) HasTimestamp() bool { return r.TakenUnix > 0 }

// HasGeo reports whether the record carries a usable location.
func (r SidecarRecord) HasGeo() bool { return !r.Geo.Absent() }

// MatchTier classifies how a media file was paired with its sidecar.
// Lower values win: an exact hit beats every fallback rule.
type MatchTier int

const (
	TierExact MatchTier = iota
	TierTruncated
	TierSuffixStripped
	TierNumberedDup
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierTruncated:
		return "truncated"
	case TierSuffixStripped:
		return "suffix-stripped"
	case TierNumberedDup:
		return "numbered-duplicate"
	default:
		return "unknown"
	}
}

// MatchCandidate is the media file accepted for a sidecar.
type MatchCandidate struct {
	Name string // filename within the sidecar's directory
	Tier MatchTier

	// Edited marks the candidate as an edited variant. When set,
	// OriginalName names the pre-edit original if it was found next to it;
	// OriginalMissing records that it was not.
	Edited          bool
	OriginalName    string
	OriginalMissing bool
}

// OutcomeKind enumerates the terminal states of one sidecar.
type OutcomeKind string

const (
	OutcomeMatched          OutcomeKind = "matched"
	OutcomeMissingMedia     OutcomeKind = "missing_media"
	OutcomeMalformedSidecar OutcomeKind = "malformed_sidecar"
	OutcomeApplyFailed      OutcomeKind = "apply_failed"
)

// AppliedFields summarises which pieces of metadata actually landed on the
// media file. A file with FileTimes set and a non-empty EmbedError is a
// partial success, not a failure.
type AppliedFields struct {
	FileTimes  bool   `json:"file_times"`
	EmbedDate  bool   `json:"embed_date"`
	EmbedGPS   bool   `json:"embed_gps"`
	AudioTags  bool   `json:"audio_tags"`
	EmbedError string `json:"embed_error,omitempty"`
}

// RestoreOutcome is the single terminal result produced for one sidecar.
type RestoreOutcome struct {
	Sidecar  string      `json:"sidecar"` // sidecar path relative to the source root
	Kind     OutcomeKind `json:"kind"`
	Declared string      `json:"declared,omitempty"` // declared filename from the sidecar
	Media    string      `json:"media,omitempty"`    // matched media path relative to the source root
	Dest     string      `json:"dest,omitempty"`     // destination path after organizing
	Tier     string      `json:"tier,omitempty"`

	// OriginalMissing flags an edited match whose pre-edit original was
	// absent. The edited file itself still counts as matched.
	OriginalMissing bool `json:"original_missing,omitempty"`

	Applied AppliedFields `json:"applied"`
	Reason  string        `json:"reason,omitempty"`
}

// ReportSummary aggregates outcome counts for one run.
type ReportSummary struct {
	Matched          int `json:"matched"`
	MissingMedia     int `json:"missing_media"`
	MalformedSidecar int `json:"malformed_sidecar"`
	ApplyFailed      int `json:"apply_failed"`
	MissingOriginals int `json:"missing_originals"`
}

// RunReport is the aggregate result of one invocation. It is write-once:
// the coordinator appends outcomes while running and finalizes it at the end.
type RunReport struct {
	SourceDir string `json:"source_dir"`
	DryRun    bool   `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  ReportSummary    `json:"summary"`
	Outcomes []RestoreOutcome `json:"outcomes"`
}

// Finalize normalizes times to UTC, orders outcomes by sidecar path, and
// computes the summary. Called exactly once, after the last sidecar.
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].Sidecar < r.Outcomes[j].Sidecar
	})

	var s ReportSummary
	for _, o := range r.Outcomes {
		switch o.Kind {
		case OutcomeMatched:
			s.Matched++
		case OutcomeMissingMedia:
			s.MissingMedia++
		case OutcomeMalformedSidecar:
			s.MalformedSidecar++
		case OutcomeApplyFailed:
			s.ApplyFailed++
		}
		if o.OriginalMissing {
			s.MissingOriginals++
		}
	}
	r.Summary = s
}

// Config carries every knob the pipeline reads. It is built once by the
// caller and threaded through explicitly; nothing reads ambient state.
type Config struct {
	SourceDir string

	// EditedSuffix is the localizable suffix Google appends to edited
	// copies, compared case-sensitively ("edited" → "photo-edited.jpg").
	EditedSuffix string

	// TruncateLen is the filename length at which the export service
	// truncates declared names. Empirical and service-version dependent,
	// hence configurable.
	TruncateLen int

	MatchedDirName   string
	EditedRawDirName string
	LogsDirName      string

	MoveRetries int
	RetryDelay  time.Duration

	DryRun bool
	Quiet  bool
}

// DefaultConfig returns the configuration matching Google Takeout exports
// as observed in the wild.
func DefaultConfig() Config {
	return Config{
		EditedSuffix:     "edited",
		TruncateLen:      47,
		MatchedDirName:   "MatchedMedia",
		EditedRawDirName: "EditedRaw",
		LogsDirName:      "logs",
		MoveRetries:      3,
		RetryDelay:       time.Second,
	}
}
