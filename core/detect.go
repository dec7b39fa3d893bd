package core

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// FormatID enumerates every recognised media format.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtGIF  FormatID = "gif"
	FmtWebP FormatID = "webp"
	FmtTIFF FormatID = "tiff"
	FmtHEIC FormatID = "heic"

	FmtMP3 FormatID = "mp3"

	FmtMP4  FormatID = "mp4"
	FmtMOV  FormatID = "mov"
	FmtMKV  FormatID = "mkv"
	FmtWebM FormatID = "webm"
	FmtAVI  FormatID = "avi"

	FmtUnknown FormatID = "unknown"
)

// Capability is the closed set of apply strategies. Every file resolves to
// exactly one, selected once by DetectFormat + CapabilityFor.
type Capability int

const (
	// CapExifEmbed: date and GPS tags are written into an EXIF block.
	CapExifEmbed Capability = iota
	// CapID3Embed: title, description and year are written as ID3 frames.
	CapID3Embed
	// CapTimestampOnly: only filesystem timestamps are restored.
	// A deliberate partial path for containers we do not rewrite.
	CapTimestampOnly
)

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".png":  FmtPNG,
	".gif":  FmtGIF,
	".webp": FmtWebP,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,
	".heic": FmtHEIC,
	".heif": FmtHEIC,

	".mp3": FmtMP3,

	".mp4":  FmtMP4,
	".m4v":  FmtMP4,
	".mov":  FmtMOV,
	".qt":   FmtMOV,
	".mkv":  FmtMKV,
	".webm": FmtWebM,
	".avi":  FmtAVI,
}

// DetectFormat returns the FormatID for the given file, first by reading
// magic bytes, then by asking dhowden/tag, finally by extension.
func DetectFormat(path string) (FormatID, error) {
	f, err := os.Open(path)
	if err != nil {
		return FmtUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 16)
	n, err := io.ReadFull(f, buf)
	if err != nil && n == 0 {
		return FmtUnknown, err
	}
	buf = buf[:n]

	if id := detectMagic(buf); id != FmtUnknown {
		return id, nil
	}

	// Audio containers with unusual layouts: let the tag library identify
	// the file type before we give up on content.
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if _, ft, err := tag.Identify(f); err == nil {
			if id := fromTagFileType(ft); id != FmtUnknown {
				return id, nil
			}
		}
	}

	if id, ok := extMap[strings.ToLower(filepath.Ext(path))]; ok {
		return id, nil
	}
	return FmtUnknown, nil
}

func detectMagic(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FmtPNG
	// GIF: GIF87a or GIF89a
	case bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")):
		return FmtGIF
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FmtWebP
	// TIFF: 49 49 2A 00 (little-endian) or 4D 4D 00 2A (big-endian)
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return FmtTIFF
	// MP3: ID3 tag or frame sync
	case bytes.HasPrefix(b, []byte("ID3")):
		return FmtMP3
	case b[0] == 0xFF && (b[1]&0xE0 == 0xE0):
		return FmtMP3
	// MP4/MOV/HEIC: ftyp box at offset 4
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return detectISOBMFFSubtype(b)
	// MKV/WebM: EBML header 0x1A45DFA3
	case binary.BigEndian.Uint32(b[0:4]) == 0x1A45DFA3:
		return FmtMKV
	// AVI: RIFF????AVI
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("AVI ")):
		return FmtAVI
	}
	return FmtUnknown
}

func detectISOBMFFSubtype(b []byte) FormatID {
	if len(b) < 12 {
		return FmtMP4
	}
	switch string(b[8:12]) {
	case "qt  ":
		return FmtMOV
	case "heic", "heix", "mif1":
		return FmtHEIC
	default:
		return FmtMP4
	}
}

func fromTagFileType(ft tag.FileType) FormatID {
	switch ft {
	case tag.MP3:
		return FmtMP3
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return FmtMP4
	default:
		return FmtUnknown
	}
}

// CapabilityFor returns the apply strategy for a format. JPEG is the one
// format we rewrite EXIF for; TIFF is whole-file IFD-rebuild territory and
// stays timestamp-only.
func CapabilityFor(id FormatID) Capability {
	switch id {
	case FmtJPEG:
		return CapExifEmbed
	case FmtMP3:
		return CapID3Embed
	default:
		return CapTimestampOnly
	}
}
