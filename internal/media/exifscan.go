package media

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// goexif sizes its buffers from tag counts without overflow checks, so the
// TIFF structure is bounds-checked here before it is handed over.
const (
	maxTIFFRead = 4 << 20
	maxIFDs     = 32
)

// ErrMalformedEXIF means the EXIF block is truncated or self-inconsistent.
var ErrMalformedEXIF = errors.New("malformed exif")

var exifIntro = []byte("Exif\x00\x00")

// tiffTypeSizes holds the byte size of TIFF field types 1 to 12.
var tiffTypeSizes = [...]uint64{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8}

// Pointer tags to the Exif, GPS and Interop sub-IFDs.
var subIFDTags = map[uint16]bool{0x8769: true, 0x8825: true, 0xA005: true}

func isTIFFHeader(b []byte) bool {
	return len(b) >= 4 && (bytes.Equal(b[:4], []byte("II*\x00")) || bytes.Equal(b[:4], []byte("MM\x00*")))
}

// readTIFF returns the TIFF block of a JPEG APP1 Exif segment, or the head
// of a bare TIFF file. A file without EXIF yields ErrNoTimestamp.
func readTIFF(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil {
		return nil, ErrNoTimestamp
	}
	if isTIFFHeader(head) {
		data, err := io.ReadAll(io.LimitReader(br, maxTIFFRead))
		if err != nil {
			return nil, fmt.Errorf("read tiff: %w", err)
		}
		return data, nil
	}

	for {
		if _, err := br.ReadBytes(0xFF); err != nil {
			return nil, ErrNoTimestamp
		}
		marker, err := br.ReadByte()
		for err == nil && marker == 0xFF {
			marker, err = br.ReadByte()
		}
		if err != nil {
			return nil, ErrNoTimestamp
		}
		if marker != 0xE1 {
			continue
		}
		var size uint16
		if err := binary.Read(br, binary.BigEndian, &size); err != nil {
			return nil, ErrNoTimestamp
		}
		if size < 2 {
			continue
		}
		seg := make([]byte, int(size)-2)
		if _, err := io.ReadFull(br, seg); err != nil {
			return nil, fmt.Errorf("%w: truncated app1 segment", ErrMalformedEXIF)
		}
		if bytes.HasPrefix(seg, exifIntro) {
			return seg[len(exifIntro):], nil
		}
	}
}

// checkTIFF walks the IFD chain and the sub-IFDs goexif follows and rejects
// any entry whose value does not fit inside data.
func checkTIFF(data []byte) error {
	if len(data) < 8 || !isTIFFHeader(data) {
		return fmt.Errorf("%w: bad tiff header", ErrMalformedEXIF)
	}
	var order binary.ByteOrder = binary.LittleEndian
	if data[0] == 'M' {
		order = binary.BigEndian
	}

	type dir struct {
		offset uint32
		chain  bool
	}
	queue := []dir{{offset: order.Uint32(data[4:8]), chain: true}}
	seen := make(map[uint32]bool)
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		if d.offset == 0 {
			continue
		}
		if seen[d.offset] {
			if !d.chain {
				continue
			}
			return fmt.Errorf("%w: ifd loop at offset %d", ErrMalformedEXIF, d.offset)
		}
		if len(seen) == maxIFDs {
			return fmt.Errorf("%w: more than %d ifds", ErrMalformedEXIF, maxIFDs)
		}
		seen[d.offset] = true

		next, subs, err := checkIFD(data, order, d.offset)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			queue = append(queue, dir{offset: sub})
		}
		if d.chain {
			queue = append(queue, dir{offset: next, chain: true})
		}
	}
	return nil
}

func checkIFD(data []byte, order binary.ByteOrder, offset uint32) (uint32, []uint32, error) {
	size := uint64(len(data))
	start := uint64(offset)
	if start+2 > size {
		return 0, nil, fmt.Errorf("%w: ifd offset %d out of range", ErrMalformedEXIF, offset)
	}
	n := uint64(order.Uint16(data[start:]))
	entries := start + 2
	end := entries + n*12 + 4
	if end > size {
		return 0, nil, fmt.Errorf("%w: ifd at %d truncated", ErrMalformedEXIF, offset)
	}

	var subs []uint32
	for i := uint64(0); i < n; i++ {
		e := data[entries+i*12 : entries+i*12+12]
		id := order.Uint16(e[0:])
		typ := order.Uint16(e[2:])
		count := uint64(order.Uint32(e[4:]))

		var typeSize uint64
		if int(typ) < len(tiffTypeSizes) {
			typeSize = tiffTypeSizes[typ]
		}
		length := typeSize * count
		if length > size {
			return 0, nil, fmt.Errorf("%w: tag 0x%04x claims %d bytes", ErrMalformedEXIF, id, length)
		}
		value := e[8:12]
		if length > 4 {
			valueOffset := uint64(order.Uint32(e[8:]))
			if valueOffset+length > size {
				return 0, nil, fmt.Errorf("%w: tag 0x%04x value out of range", ErrMalformedEXIF, id)
			}
			value = data[valueOffset : valueOffset+length]
		}

		if !subIFDTags[id] || count == 0 {
			continue
		}
		// The decoder follows the first value of a pointer tag.
		ptr, ok := firstInt(order, typ, value)
		if ok && ptr >= 0 && uint64(ptr)+2 <= size {
			subs = append(subs, uint32(ptr))
		}
	}
	return order.Uint32(data[entries+n*12:]), subs, nil
}

func firstInt(order binary.ByteOrder, typ uint16, value []byte) (int64, bool) {
	switch typ {
	case 1:
		return int64(value[0]), true
	case 6:
		return int64(int8(value[0])), true
	case 3:
		return int64(order.Uint16(value)), true
	case 8:
		return int64(int16(order.Uint16(value))), true
	case 4:
		return int64(order.Uint32(value)), true
	case 9:
		return int64(int32(order.Uint32(value))), true
	}
	return 0, false
}
