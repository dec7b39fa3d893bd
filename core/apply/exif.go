package apply

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/axatjpr/photometa-restore/core"
)

// exifDateLayout is the EXIF Ascii date format.
const exifDateLayout = "2006:01:02 15:04:05"

// EXIF tag IDs for the string fields we read back and re-encode.
var exifTagIDs = map[string]uint16{
	"ImageDescription":  0x010E,
	"Make":              0x010F,
	"Model":             0x0110,
	"Software":          0x0131,
	"DateTime":          0x0132,
	"Artist":            0x013B,
	"Copyright":         0x8298,
	"DateTimeOriginal":  0x9003,
	"DateTimeDigitized": 0x9004,
}

const (
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
	tagExifIFD           = 0x8769
	tagGPSInfo           = 0x8825
)

// writeJPEGExif rewrites the APP1 EXIF segment of a JPEG with the record's
// date and GPS tags. String fields already present in the file are carried
// over so the rebuild does not lose them. Returns which of the two tag
// groups were written.
func writeJPEGExif(path string, rec core.SidecarRecord) (date, gps bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, false, err
	}

	segments, err := parseJPEGSegments(data)
	if err != nil {
		return false, false, err
	}

	fields := map[string]string{}
	exifIdx := -1
	for i, seg := range segments {
		if seg.marker == 0xE1 && bytes.HasPrefix(seg.data, []byte("Exif\x00\x00")) {
			exifIdx = i
			if x, derr := exif.Decode(bytes.NewReader(seg.data[6:])); derr == nil {
				x.Walk(stringFieldWalker{fields: fields})
			}
			break
		}
	}

	if rec.HasTimestamp() {
		stamp := time.Unix(rec.TakenUnix, 0).Format(exifDateLayout)
		fields["DateTime"] = stamp
		fields["DateTimeOriginal"] = stamp
		fields["DateTimeDigitized"] = stamp
		date = true
	}
	var geo *core.GeoData
	if rec.HasGeo() {
		g := rec.Geo
		geo = &g
		gps = true
	}

	blob, err := buildExif(fields, geo)
	if err != nil {
		return false, false, err
	}

	if exifIdx >= 0 {
		segments[exifIdx].data = blob
	} else {
		newSeg := jpegSegment{marker: 0xE1, data: blob}
		segments = append([]jpegSegment{segments[0], newSeg}, segments[1:]...)
	}

	if err := writeJPEGSegments(path, segments); err != nil {
		return false, false, err
	}
	return date, gps, nil
}

type stringFieldWalker struct {
	fields map[string]string
}

func (w stringFieldWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if _, known := exifTagIDs[string(name)]; !known {
		return nil
	}
	if tag.Type != tiff.DTAscii {
		return nil
	}
	val := tag.String()
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	w.fields[string(name)] = val
	return nil
}

// ─── JPEG segment plumbing ───────────────────────────────────────────────────

type jpegSegment struct {
	marker byte
	data   []byte
}

func parseJPEGSegments(data []byte) ([]jpegSegment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("not a JPEG")
	}
	var segs []jpegSegment
	segs = append(segs, jpegSegment{marker: 0xD8}) // SOI

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			// Raw scan data (after SOS)
			segs = append(segs, jpegSegment{marker: 0x00, data: data[i:]})
			break
		}
		i++
		if i >= len(data) {
			break
		}
		marker := data[i]
		i++

		if marker == 0xD8 || marker == 0xD9 {
			segs = append(segs, jpegSegment{marker: marker})
			if marker == 0xD9 {
				break
			}
			continue
		}

		if i+2 > len(data) {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		i += 2
		if segLen < 0 || i+segLen > len(data) {
			break
		}
		segs = append(segs, jpegSegment{marker: marker, data: append([]byte{}, data[i:i+segLen]...)})
		i += segLen
	}
	return segs, nil
}

// writeJPEGSegments reassembles the file and replaces it through a
// same-directory temp file, so a failed write never leaves a torn JPEG.
func writeJPEGSegments(path string, segs []jpegSegment) error {
	var buf bytes.Buffer
	for _, seg := range segs {
		switch seg.marker {
		case 0xD8:
			buf.Write([]byte{0xFF, 0xD8})
		case 0xD9:
			buf.Write([]byte{0xFF, 0xD9})
		case 0x00:
			buf.Write(seg.data)
		default:
			buf.WriteByte(0xFF)
			buf.WriteByte(seg.marker)
			length := uint16(len(seg.data) + 2)
			buf.WriteByte(byte(length >> 8))
			buf.WriteByte(byte(length))
			buf.Write(seg.data)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpName)
	}()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ─── EXIF block construction ─────────────────────────────────────────────────

type asciiEntry struct {
	tag   uint16
	value string
}

// buildExif assembles an APP1 EXIF payload: a little-endian TIFF header,
// IFD0 with the camera-level Ascii fields, an Exif sub-IFD behind pointer
// tag 0x8769 carrying the capture dates, and a GPS sub-IFD behind 0x8825
// holding latitude, longitude and altitude as rationals with sign-derived
// hemisphere references.
func buildExif(fields map[string]string, geo *core.GeoData) ([]byte, error) {
	var ifd0, exifSub []asciiEntry
	for k, v := range fields {
		tid, ok := exifTagIDs[k]
		if !ok {
			continue
		}
		switch tid {
		case tagDateTimeOriginal, tagDateTimeDigitized:
			exifSub = append(exifSub, asciiEntry{tag: tid, value: v})
		default:
			ifd0 = append(ifd0, asciiEntry{tag: tid, value: v})
		}
	}
	if len(ifd0)+len(exifSub) == 0 && geo == nil {
		return nil, fmt.Errorf("no EXIF fields to write")
	}
	// IFD entries must be in ascending tag order. Every Ascii tag left in
	// IFD0 sits below both pointer tags, so the pointers always come last.
	sort.Slice(ifd0, func(i, j int) bool { return ifd0[i].tag < ifd0[j].tag })
	sort.Slice(exifSub, func(i, j int) bool { return exifSub[i].tag < exifSub[j].tag })

	n0 := len(ifd0)
	if len(exifSub) > 0 {
		n0++
	}
	if geo != nil {
		n0++
	}
	const entrySize = 12
	ifd0Size := 2 + n0*entrySize + 4
	val0Off := 8 + ifd0Size

	// First pass: size of the IFD0 value area.
	val0Len := 0
	for _, e := range ifd0 {
		if l := len(e.value) + 1; l > 4 {
			val0Len += l
		}
	}
	exifOff := val0Off + val0Len
	var exifBlock []byte
	if len(exifSub) > 0 {
		exifBlock = encodeAsciiIFD(exifSub, exifOff)
	}
	gpsOff := exifOff + len(exifBlock)

	var ifd bytes.Buffer
	var val0 bytes.Buffer
	le16 := func(b *bytes.Buffer, v uint16) { binary.Write(b, binary.LittleEndian, v) }
	le32 := func(b *bytes.Buffer, v uint32) { binary.Write(b, binary.LittleEndian, v) }

	le16(&ifd, uint16(n0))
	for _, e := range ifd0 {
		val := e.value + "\x00"
		le16(&ifd, e.tag)
		le16(&ifd, 2) // ASCII
		le32(&ifd, uint32(len(val)))
		if len(val) <= 4 {
			padded := make([]byte, 4)
			copy(padded, val)
			ifd.Write(padded)
		} else {
			le32(&ifd, uint32(val0Off+val0.Len()))
			val0.WriteString(val)
		}
	}
	if len(exifSub) > 0 {
		le16(&ifd, tagExifIFD)
		le16(&ifd, 4) // LONG
		le32(&ifd, 1)
		le32(&ifd, uint32(exifOff))
	}
	if geo != nil {
		le16(&ifd, tagGPSInfo)
		le16(&ifd, 4) // LONG
		le32(&ifd, 1)
		le32(&ifd, uint32(gpsOff))
	}
	le32(&ifd, 0) // next IFD

	var buf bytes.Buffer
	buf.WriteString("Exif\x00\x00")
	buf.WriteString("II")
	buf.Write([]byte{0x2A, 0x00})
	buf.Write([]byte{0x08, 0x00, 0x00, 0x00})
	buf.Write(ifd.Bytes())
	buf.Write(val0.Bytes())
	buf.Write(exifBlock)
	if geo != nil {
		buf.Write(buildGPSIFD(*geo, gpsOff))
	}
	return buf.Bytes(), nil
}

// encodeAsciiIFD renders a sub-IFD of Ascii entries located at offset base
// within the TIFF block, with its value area appended directly after it.
func encodeAsciiIFD(entries []asciiEntry, base int) []byte {
	const entrySize = 12
	ifdSize := 2 + len(entries)*entrySize + 4
	valOff := base + ifdSize

	var ifd bytes.Buffer
	var vals bytes.Buffer
	le16 := func(b *bytes.Buffer, v uint16) { binary.Write(b, binary.LittleEndian, v) }
	le32 := func(b *bytes.Buffer, v uint32) { binary.Write(b, binary.LittleEndian, v) }

	le16(&ifd, uint16(len(entries)))
	for _, e := range entries {
		val := e.value + "\x00"
		le16(&ifd, e.tag)
		le16(&ifd, 2) // ASCII
		le32(&ifd, uint32(len(val)))
		if len(val) <= 4 {
			padded := make([]byte, 4)
			copy(padded, val)
			ifd.Write(padded)
		} else {
			le32(&ifd, uint32(valOff+vals.Len()))
			vals.WriteString(val)
		}
	}
	le32(&ifd, 0) // next IFD
	ifd.Write(vals.Bytes())
	return ifd.Bytes()
}

// buildGPSIFD encodes the GPS sub-IFD at offset base within the TIFF block.
func buildGPSIFD(geo core.GeoData, base int) []byte {
	const entrySize = 12
	const numEntries = 7
	ifdSize := 2 + numEntries*entrySize + 4
	valOff := base + ifdSize

	latRef := byte('N')
	if geo.Latitude < 0 {
		latRef = 'S'
	}
	lngRef := byte('E')
	if geo.Longitude < 0 {
		lngRef = 'W'
	}
	altRef := byte(0)
	if geo.Altitude < 0 {
		altRef = 1
	}

	var ifd bytes.Buffer
	var vals bytes.Buffer
	le16 := func(b *bytes.Buffer, v uint16) { binary.Write(b, binary.LittleEndian, v) }
	le32 := func(b *bytes.Buffer, v uint32) { binary.Write(b, binary.LittleEndian, v) }
	rational := func(num, den uint32) {
		le32(&vals, num)
		le32(&vals, den)
	}

	le16(&ifd, numEntries)

	// 0x0000 GPSVersionID, BYTE x4, inline
	le16(&ifd, 0x0000)
	le16(&ifd, 1)
	le32(&ifd, 4)
	ifd.Write([]byte{2, 0, 0, 0})

	// 0x0001 GPSLatitudeRef, ASCII x2, inline
	le16(&ifd, 0x0001)
	le16(&ifd, 2)
	le32(&ifd, 2)
	ifd.Write([]byte{latRef, 0, 0, 0})

	// 0x0002 GPSLatitude, RATIONAL x3
	le16(&ifd, 0x0002)
	le16(&ifd, 5)
	le32(&ifd, 3)
	le32(&ifd, uint32(valOff+vals.Len()))
	writeDegMinSec(rational, geo.Latitude)

	// 0x0003 GPSLongitudeRef, ASCII x2, inline
	le16(&ifd, 0x0003)
	le16(&ifd, 2)
	le32(&ifd, 2)
	ifd.Write([]byte{lngRef, 0, 0, 0})

	// 0x0004 GPSLongitude, RATIONAL x3
	le16(&ifd, 0x0004)
	le16(&ifd, 5)
	le32(&ifd, 3)
	le32(&ifd, uint32(valOff+vals.Len()))
	writeDegMinSec(rational, geo.Longitude)

	// 0x0005 GPSAltitudeRef, BYTE x1, inline (0 above / 1 below sea level)
	le16(&ifd, 0x0005)
	le16(&ifd, 1)
	le32(&ifd, 1)
	ifd.Write([]byte{altRef, 0, 0, 0})

	// 0x0006 GPSAltitude, RATIONAL x1
	le16(&ifd, 0x0006)
	le16(&ifd, 5)
	le32(&ifd, 1)
	le32(&ifd, uint32(valOff+vals.Len()))
	rational(uint32(math.Round(math.Abs(geo.Altitude)*100)), 100)

	le32(&ifd, 0) // next IFD

	ifd.Write(vals.Bytes())
	return ifd.Bytes()
}

// writeDegMinSec emits a coordinate as three rationals: whole degrees,
// whole minutes, and seconds to five decimal places.
func writeDegMinSec(rational func(num, den uint32), v float64) {
	abs := math.Abs(v)
	deg := math.Floor(abs)
	rem := (abs - deg) * 60
	min := math.Floor(rem)
	sec := (rem - min) * 60

	rational(uint32(deg), 1)
	rational(uint32(min), 1)
	rational(uint32(math.Round(sec*100000)), 100000)
}
