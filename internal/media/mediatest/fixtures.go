// Package mediatest builds tiny media files carrying known timestamps.
package mediatest

import (
	"bytes"
	"encoding/binary"
)

// Tag ids written by ExifJPEG.
const (
	TagDateTime         uint16 = 0x0132
	tagExifIFDPointer   uint16 = 0x8769
	TagDateTimeOriginal uint16 = 0x9003
)

// ExifJPEG builds a minimal JPEG whose APP1 segment carries one date tag.
// DateTime lives in IFD0, DateTimeOriginal in the Exif sub-IFD.
func ExifJPEG(tag uint16, value string) []byte {
	ascii := append([]byte(value), 0)
	be := binary.BigEndian

	var tiff bytes.Buffer
	tiff.Write([]byte{'M', 'M', 0x00, 0x2A})
	_ = binary.Write(&tiff, be, uint32(8))

	entry := func(id, typ uint16, count, value uint32) {
		_ = binary.Write(&tiff, be, id)
		_ = binary.Write(&tiff, be, typ)
		_ = binary.Write(&tiff, be, count)
		_ = binary.Write(&tiff, be, value)
	}

	const ifd0 = 8
	const ifdSize = 2 + 12 + 4
	if tag == TagDateTimeOriginal {
		exifIFD := uint32(ifd0 + ifdSize)
		dataOffset := exifIFD + ifdSize
		_ = binary.Write(&tiff, be, uint16(1))
		entry(tagExifIFDPointer, 4, 1, exifIFD)
		_ = binary.Write(&tiff, be, uint32(0))
		_ = binary.Write(&tiff, be, uint16(1))
		entry(TagDateTimeOriginal, 2, uint32(len(ascii)), dataOffset)
		_ = binary.Write(&tiff, be, uint32(0))
	} else {
		dataOffset := uint32(ifd0 + ifdSize)
		_ = binary.Write(&tiff, be, uint16(1))
		entry(tag, 2, uint32(len(ascii)), dataOffset)
		_ = binary.Write(&tiff, be, uint32(0))
	}
	tiff.Write(ascii)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	_ = binary.Write(&out, be, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

// MP4WithCreation builds an ftyp box and a moov box holding a version 0 mvhd.
func MP4WithCreation(mp4Seconds uint32) []byte {
	be := binary.BigEndian
	var mvhd bytes.Buffer
	_ = binary.Write(&mvhd, be, uint32(8+100))
	mvhd.WriteString("mvhd")
	mvhd.Write([]byte{0, 0, 0, 0}) // version 0, flags
	_ = binary.Write(&mvhd, be, mp4Seconds)
	_ = binary.Write(&mvhd, be, mp4Seconds)
	_ = binary.Write(&mvhd, be, uint32(1000))      // timescale
	_ = binary.Write(&mvhd, be, uint32(0))         // duration
	_ = binary.Write(&mvhd, be, int32(0x00010000)) // rate
	_ = binary.Write(&mvhd, be, int16(0x0100))     // volume
	mvhd.Write(make([]byte, 2+8))                  // reserved
	mvhd.Write(make([]byte, 36))                   // matrix
	mvhd.Write(make([]byte, 24))                   // pre_defined
	_ = binary.Write(&mvhd, be, uint32(2))         // next_track_ID

	var out bytes.Buffer
	_ = binary.Write(&out, be, uint32(16))
	out.WriteString("ftypisom")
	_ = binary.Write(&out, be, uint32(512))
	_ = binary.Write(&out, be, uint32(8+mvhd.Len()))
	out.WriteString("moov")
	out.Write(mvhd.Bytes())
	return out.Bytes()
}
