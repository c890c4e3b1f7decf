package ais

import (
	"time"
)

const (
	sogNotAvailable     = 1023
	cogNotAvailable     = 3600
	headingNotAvailable = 511
	rotNotAvailable     = -128
	lonNotAvailable     = 181
	latNotAvailable     = 91
	secondNotAvailable  = 60

	coordScale          = 600000.0 // 1/10000 minute
	longRangeCoordScale = 600.0    // 1/10 minute
)

// Decode turns an armored payload into a typed message. It is pure: the only
// time input is receivedAt, from which the report timestamp is derived.
func Decode(payload string, fillBits int, receivedAt time.Time) (Message, error) {
	if payload == "" {
		return nil, &DecodeError{Reason: ErrEmpty}
	}
	r, err := newBitReader(payload, fillBits)
	if err != nil {
		return nil, err
	}
	if r.len() < 6 {
		return nil, decodeErr(ErrPayloadLength, "%d bits", r.len())
	}

	msgType := int(r.uint(0, 6))
	switch msgType {
	case 1, 2, 3:
		return decodeClassA(r, msgType, receivedAt)
	case 18:
		return decodeClassB(r, receivedAt)
	case 19:
		return decodeClassBExtended(r, receivedAt)
	case 27:
		return decodeLongRange(r, receivedAt)
	case 5:
		return decodeStaticVoyage(r, receivedAt)
	case 24:
		return decodeStaticDataReport(r, receivedAt)
	default:
		var mmsi MMSI
		if r.len() >= 38 {
			mmsi = MMSI(r.uint(8, 30))
		}
		return Unhandled{MessageType: msgType, MMSI: mmsi}, nil
	}
}

// DecodeSentence parses and decodes a single-fragment line. Multi-fragment
// sentences need an Assembler and are rejected here.
func DecodeSentence(line string, receivedAt time.Time) (Message, error) {
	s, err := ParseSentence(line)
	if err != nil {
		return nil, err
	}
	if !s.Single() {
		return nil, decodeErr(ErrFragment, "fragment %d/%d needs assembly", s.FragmentNumber, s.FragmentCount)
	}
	return Decode(s.Payload, s.FillBits, receivedAt)
}

func requireBits(r *bitReader, msgType, min int) error {
	if r.len() < min {
		return decodeErr(ErrPayloadLength, "type %d has %d bits, need %d", msgType, r.len(), min)
	}
	return nil
}

func decodeClassA(r *bitReader, msgType int, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, msgType, 168); err != nil {
		return nil, err
	}
	lat, lon, err := coordinates(r.int(89, 27), r.int(61, 28), coordScale)
	if err != nil {
		return nil, err
	}
	return &PositionReport{
		MMSI:             MMSI(r.uint(8, 30)),
		MessageType:      msgType,
		NavStatus:        NavStatus(r.uint(38, 4)),
		RateOfTurn:       rateOfTurn(r.int(42, 8)),
		SpeedOverGround:  tenths(r.uint(50, 10), sogNotAvailable),
		PositionAccuracy: r.bool(60),
		Longitude:        lon,
		Latitude:         lat,
		CourseOverGround: tenths(r.uint(116, 12), cogNotAvailable),
		Heading:          heading(r.uint(128, 9)),
		ReportTimestamp:  reportTime(int(r.uint(137, 6)), receivedAt),
		ReceivedAt:       receivedAt,
	}, nil
}

func decodeClassB(r *bitReader, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, 18, 168); err != nil {
		return nil, err
	}
	return classBPosition(r, 18, receivedAt)
}

func classBPosition(r *bitReader, msgType int, receivedAt time.Time) (*PositionReport, error) {
	lat, lon, err := coordinates(r.int(85, 27), r.int(57, 28), coordScale)
	if err != nil {
		return nil, err
	}
	return &PositionReport{
		MMSI:             MMSI(r.uint(8, 30)),
		MessageType:      msgType,
		NavStatus:        NavStatusNotDefined,
		SpeedOverGround:  tenths(r.uint(46, 10), sogNotAvailable),
		PositionAccuracy: r.bool(56),
		Longitude:        lon,
		Latitude:         lat,
		CourseOverGround: tenths(r.uint(112, 12), cogNotAvailable),
		Heading:          heading(r.uint(124, 9)),
		ReportTimestamp:  reportTime(int(r.uint(133, 6)), receivedAt),
		ReceivedAt:       receivedAt,
	}, nil
}

func decodeClassBExtended(r *bitReader, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, 19, 312); err != nil {
		return nil, err
	}
	pos, err := classBPosition(r, 19, receivedAt)
	if err != nil {
		return nil, err
	}
	pos.Static = &StaticInfo{
		MMSI:        pos.MMSI,
		MessageType: 19,
		VesselName:  optionalText(r.text(143, 120)),
		ShipType:    optionalInt(int(r.uint(263, 8))),
		Dimensions:  dimensions(r, 271),
		UpdatedAt:   receivedAt,
	}
	return pos, nil
}

func decodeLongRange(r *bitReader, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, 27, 96); err != nil {
		return nil, err
	}
	lat, lon, err := coordinates(r.int(62, 17), r.int(44, 18), longRangeCoordScale)
	if err != nil {
		return nil, err
	}
	report := &PositionReport{
		MMSI:             MMSI(r.uint(8, 30)),
		MessageType:      27,
		PositionAccuracy: r.bool(38),
		NavStatus:        NavStatus(r.uint(40, 4)),
		Longitude:        lon,
		Latitude:         lat,
		ReportTimestamp:  reportTime(secondNotAvailable, receivedAt),
		ReceivedAt:       receivedAt,
	}
	if sog := r.uint(79, 6); sog != 63 {
		v := float64(sog)
		report.SpeedOverGround = &v
	}
	if cog := r.uint(85, 9); cog < 360 {
		v := float64(cog)
		report.CourseOverGround = &v
	}
	return report, nil
}

func decodeStaticVoyage(r *bitReader, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, 5, 420); err != nil {
		return nil, err
	}
	info := &StaticInfo{
		MMSI:        MMSI(r.uint(8, 30)),
		MessageType: 5,
		IMONumber:   optionalInt(int(r.uint(40, 30))),
		Callsign:    optionalText(r.text(70, 42)),
		VesselName:  optionalText(r.text(112, 120)),
		ShipType:    optionalInt(int(r.uint(232, 8))),
		Dimensions:  dimensions(r, 240),
		Destination: optionalText(r.text(302, 120)),
		UpdatedAt:   receivedAt,
	}
	if draught := r.uint(294, 8); draught > 0 {
		v := float64(draught) / 10
		info.Draught = &v
	}
	month, day := int(r.uint(274, 4)), int(r.uint(278, 5))
	if month != 0 && day != 0 {
		info.ETA = &ETA{Month: month, Day: day, Hour: int(r.uint(283, 5)), Minute: int(r.uint(288, 6))}
	}
	return info, nil
}

func decodeStaticDataReport(r *bitReader, receivedAt time.Time) (Message, error) {
	if err := requireBits(r, 24, 40); err != nil {
		return nil, err
	}
	info := &StaticInfo{
		MMSI:        MMSI(r.uint(8, 30)),
		MessageType: 24,
		UpdatedAt:   receivedAt,
	}
	switch part := r.uint(38, 2); part {
	case 0:
		if err := requireBits(r, 24, 160); err != nil {
			return nil, err
		}
		info.VesselName = optionalText(r.text(40, 120))
	case 1:
		if err := requireBits(r, 24, 162); err != nil {
			return nil, err
		}
		info.ShipType = optionalInt(int(r.uint(40, 8)))
		info.Callsign = optionalText(r.text(90, 42))
		info.Dimensions = dimensions(r, 132)
	default:
		return nil, decodeErr(ErrInvalidField, "type 24 part number %d", part)
	}
	return info, nil
}

func coordinates(latRaw, lonRaw int64, scale float64) (float64, float64, error) {
	lat := float64(latRaw) / scale
	lon := float64(lonRaw) / scale
	if lat == latNotAvailable || lon == lonNotAvailable {
		return 0, 0, &DecodeError{Reason: ErrPositionUnavailable}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, decodeErr(ErrPositionUnavailable, "lat %.5f lon %.5f out of range", lat, lon)
	}
	return lat, lon, nil
}

func tenths(raw uint64, notAvailable uint64) *float64 {
	if raw >= notAvailable {
		return nil
	}
	v := float64(raw) / 10
	return &v
}

func heading(raw uint64) *int {
	if raw >= 360 {
		return nil
	}
	v := int(raw)
	return &v
}

// rateOfTurn inverts ROT_ais = 4.733 * sqrt(ROT).
func rateOfTurn(raw int64) *float64 {
	if raw == rotNotAvailable {
		return nil
	}
	v := float64(raw) / 4.733
	rot := v * v
	if raw < 0 {
		rot = -rot
	}
	return &rot
}

// reportTime places the transmitted UTC second within the minute of receipt.
// A second far ahead of the receive time belongs to the previous minute.
// Without a usable second the receive time stands in, at the same whole
// second resolution as every other report time.
func reportTime(second int, receivedAt time.Time) time.Time {
	if second >= secondNotAvailable {
		return receivedAt.Truncate(time.Second)
	}
	t := receivedAt.Truncate(time.Minute).Add(time.Duration(second) * time.Second)
	if t.Sub(receivedAt) > 30*time.Second {
		t = t.Add(-time.Minute)
	}
	return t
}

func dimensions(r *bitReader, start int) *Dimensions {
	d := Dimensions{
		ToBow:       int(r.uint(start, 9)),
		ToStern:     int(r.uint(start+9, 9)),
		ToPort:      int(r.uint(start+18, 6)),
		ToStarboard: int(r.uint(start+24, 6)),
	}
	if d == (Dimensions{}) {
		return nil
	}
	return &d
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
