package apply

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bogem/id3v2/v2"

	"github.com/axatjpr/photometa-restore/core"
)

// writeID3 stamps the sidecar's title, description and capture year onto an
// MP3 as ID3v2 frames. Takeout keeps sidecars for uploaded audio too, and
// the frames are the closest thing the container has to date/GPS tags.
func writeID3(path string, rec core.SidecarRecord) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("could not open MP3: %w", err)
	}
	defer t.Close()

	t.SetTitle(rec.Title)
	if rec.Description != "" {
		t.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "",
			Text:        rec.Description,
		})
	}
	if rec.HasTimestamp() {
		t.SetYear(strconv.Itoa(time.Unix(rec.TakenUnix, 0).Year()))
	}
	return t.Save()
}
