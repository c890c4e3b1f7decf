package ais

import "strings"

// bitReader reads big-endian bit fields out of a de-armored payload.
type bitReader struct {
	bits []byte // one byte per bit, 0 or 1
}

func newBitReader(payload string, fillBits int) (*bitReader, error) {
	if fillBits < 0 || fillBits > 5 {
		return nil, decodeErr(ErrFraming, "fill bits %d out of range", fillBits)
	}
	bits := make([]byte, 0, len(payload)*6)
	for i := 0; i < len(payload); i++ {
		v, ok := armorValue(payload[i])
		if !ok {
			return nil, decodeErr(ErrInvalidChar, "%q at offset %d", payload[i], i)
		}
		for shift := 5; shift >= 0; shift-- {
			bits = append(bits, (v>>uint(shift))&1)
		}
	}
	if fillBits > len(bits) {
		return nil, decodeErr(ErrFraming, "fill bits exceed payload")
	}
	return &bitReader{bits: bits[:len(bits)-fillBits]}, nil
}

// armorValue maps one armored character to its 6-bit value.
func armorValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= 'W':
		return c - '0', true
	case c >= '`' && c <= 'w':
		return c - '0' - 8, true
	default:
		return 0, false
	}
}

// armorChar is the inverse of armorValue.
func armorChar(v byte) byte {
	v &= 0x3F
	if v < 40 {
		return v + '0'
	}
	return v + '0' + 8
}

func (r *bitReader) len() int {
	return len(r.bits)
}

func (r *bitReader) uint(start, width int) uint64 {
	var v uint64
	for i := start; i < start+width; i++ {
		v <<= 1
		if i < len(r.bits) {
			v |= uint64(r.bits[i])
		}
	}
	return v
}

func (r *bitReader) int(start, width int) int64 {
	v := r.uint(start, width)
	if width > 0 && v&(1<<uint(width-1)) != 0 {
		return int64(v) - int64(1)<<uint(width)
	}
	return int64(v)
}

func (r *bitReader) bool(start int) bool {
	return r.uint(start, 1) == 1
}

// text decodes 6-bit ASCII, trimming the '@' padding and trailing blanks.
func (r *bitReader) text(start, width int) string {
	var b strings.Builder
	for i := start; i+6 <= start+width; i += 6 {
		c := byte(r.uint(i, 6))
		if c < 32 {
			c += 64
		}
		b.WriteByte(c)
	}
	s := b.String()
	if idx := strings.IndexByte(s, '@'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// bitWriter builds armored payloads; used to encode test fixtures and by Encode.
type bitWriter struct {
	bits []byte
}

func (w *bitWriter) uint(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		w.bits = append(w.bits, byte((v>>uint(i))&1))
	}
}

func (w *bitWriter) int(v int64, width int) {
	w.uint(uint64(v)&(1<<uint(width)-1), width)
}

func (w *bitWriter) bool(v bool) {
	if v {
		w.uint(1, 1)
		return
	}
	w.uint(0, 1)
}

func (w *bitWriter) text(s string, chars int) {
	s = strings.ToUpper(s)
	for i := 0; i < chars; i++ {
		var c byte = '@'
		if i < len(s) {
			c = s[i]
		}
		if c >= 64 {
			c -= 64
		}
		w.uint(uint64(c&0x3F), 6)
	}
}

// armor returns the payload characters and the number of fill bits.
func (w *bitWriter) armor() (string, int) {
	fill := (6 - len(w.bits)%6) % 6
	bits := append([]byte(nil), w.bits...)
	for i := 0; i < fill; i++ {
		bits = append(bits, 0)
	}
	out := make([]byte, 0, len(bits)/6)
	for i := 0; i < len(bits); i += 6 {
		var v byte
		for j := 0; j < 6; j++ {
			v = v<<1 | bits[i+j]
		}
		out = append(out, armorChar(v))
	}
	return string(out), fill
}
