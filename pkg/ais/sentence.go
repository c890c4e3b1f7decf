package ais

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentence is one NMEA 0183 VDM/VDO line with its armored payload still encoded.
type Sentence struct {
	Talker         string
	Format         string
	FragmentCount  int
	FragmentNumber int
	SequenceID     string
	Channel        string
	Payload        string
	FillBits       int
	HasChecksum    bool
	Raw            string
}

// Single reports whether the sentence carries a complete message by itself.
func (s Sentence) Single() bool {
	return s.FragmentCount == 1
}

// ParseSentence validates framing and checksum of a single line such as
// "!AIVDM,1,1,,B,13u?etPv2;0n:dDPwUM1U1Cb069D,0*24".
func ParseSentence(line string) (Sentence, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Sentence{}, &DecodeError{Reason: ErrEmpty}
	}

	// NMEA 4.x tag blocks precede the sentence: \s:rx1,c:1700000000*5B\!AIVDM,...
	if raw[0] == '\\' {
		end := strings.LastIndexByte(raw, '\\')
		if end <= 0 {
			return Sentence{}, decodeErr(ErrFraming, "unterminated tag block")
		}
		raw = raw[end+1:]
	}

	if len(raw) == 0 || raw[0] != '!' {
		return Sentence{}, decodeErr(ErrNotAIS, "missing '!' start delimiter")
	}

	body := raw[1:]
	s := Sentence{Raw: raw}
	if star := strings.LastIndexByte(body, '*'); star >= 0 {
		sum := body[star+1:]
		body = body[:star]
		if len(sum) != 2 {
			return Sentence{}, decodeErr(ErrFraming, "checksum field %q", sum)
		}
		want, err := strconv.ParseUint(sum, 16, 8)
		if err != nil {
			return Sentence{}, decodeErr(ErrFraming, "checksum field %q", sum)
		}
		if got := Checksum(body); got != byte(want) {
			return Sentence{}, decodeErr(ErrChecksum, "got %02X want %02X", got, want)
		}
		s.HasChecksum = true
	}

	parts := strings.Split(body, ",")
	if len(parts) != 6 && len(parts) != 7 {
		return Sentence{}, decodeErr(ErrFraming, "expected 7 fields, got %d", len(parts))
	}

	header := parts[0]
	if len(header) != 5 {
		return Sentence{}, decodeErr(ErrNotAIS, "header %q", header)
	}
	s.Talker, s.Format = header[:2], header[2:]
	if s.Format != "VDM" && s.Format != "VDO" {
		return Sentence{}, decodeErr(ErrNotAIS, "sentence type %q", s.Format)
	}

	var err error
	if s.FragmentCount, err = atoiDefault(parts[1], 1); err != nil || s.FragmentCount < 1 || s.FragmentCount > 9 {
		return Sentence{}, decodeErr(ErrFraming, "fragment count %q", parts[1])
	}
	if s.FragmentNumber, err = atoiDefault(parts[2], 1); err != nil || s.FragmentNumber < 1 || s.FragmentNumber > s.FragmentCount {
		return Sentence{}, decodeErr(ErrFraming, "fragment number %q", parts[2])
	}
	s.SequenceID = parts[3]
	s.Channel = parts[4]
	s.Payload = parts[5]
	if s.Payload == "" {
		return Sentence{}, decodeErr(ErrFraming, "empty payload")
	}
	if len(parts) == 7 {
		if s.FillBits, err = atoiDefault(parts[6], 0); err != nil || s.FillBits < 0 || s.FillBits > 5 {
			return Sentence{}, decodeErr(ErrFraming, "fill bits %q", parts[6])
		}
	}

	return s, nil
}

// Checksum is the NMEA XOR over the characters between '!' and '*'.
func Checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// FormatSentence renders a single-fragment VDM line with a valid checksum.
func FormatSentence(channel, payload string, fillBits int) string {
	body := fmt.Sprintf("AIVDM,1,1,,%s,%s,%d", channel, payload, fillBits)
	return fmt.Sprintf("!%s*%02X", body, Checksum(body))
}

func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
