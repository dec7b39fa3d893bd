// Package apply writes a sidecar's metadata onto a concrete media file:
// filesystem timestamps always, embedded date/GPS tags for formats that
// support them.
package apply

import (
	"os"
	"time"

	"github.com/axatjpr/photometa-restore/core"
)

// Apply restores rec's metadata onto the file at path.
//
// The returned AppliedFields says what actually landed. A non-nil error
// means nothing usable happened (the file could not be written at all);
// an embed failure with working timestamps comes back as a nil error with
// AppliedFields.EmbedError set, the partial-success path.
func Apply(path string, rec core.SidecarRecord, cfg core.Config) (core.AppliedFields, error) {
	var ap core.AppliedFields

	id, err := core.DetectFormat(path)
	if err != nil {
		return ap, err
	}

	switch core.CapabilityFor(id) {
	case core.CapExifEmbed:
		if rec.HasTimestamp() || rec.HasGeo() {
			date, gps, err := writeJPEGExif(path, rec)
			if err != nil {
				ap.EmbedError = err.Error()
			} else {
				ap.EmbedDate = date
				ap.EmbedGPS = gps
			}
		}
	case core.CapID3Embed:
		if err := writeID3(path, rec); err != nil {
			ap.EmbedError = err.Error()
		} else {
			ap.AudioTags = true
		}
	case core.CapTimestampOnly:
		// Nothing to embed; timestamps below still apply.
	}

	if rec.HasTimestamp() {
		if err := setFileTimes(path, rec.TakenUnix, cfg); err != nil {
			return ap, err
		}
		ap.FileTimes = true
	}
	return ap, nil
}

// setFileTimes stamps the captured-at time on the file. Modification and
// access times are what POSIX lets us set; creation time follows the file
// on platforms that track it.
func setFileTimes(path string, unix int64, cfg core.Config) error {
	t := time.Unix(unix, 0)
	return core.WithRetry(cfg.MoveRetries, cfg.RetryDelay, func() error {
		return os.Chtimes(path, t, t)
	})
}
