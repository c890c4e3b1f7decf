package ais

import (
	"fmt"
	"math"
)

// EncodePosition armors a class A (1, 2, 3) or class B (18) position report.
func EncodePosition(p *PositionReport) (string, int, error) {
	w := &bitWriter{}
	switch p.MessageType {
	case 1, 2, 3:
		w.uint(uint64(p.MessageType), 6)
		w.uint(0, 2)
		w.uint(uint64(p.MMSI), 30)
		w.uint(uint64(p.NavStatus), 4)
		w.int(encodeROT(p.RateOfTurn), 8)
		w.uint(encodeTenths(p.SpeedOverGround, sogNotAvailable), 10)
		w.bool(p.PositionAccuracy)
		w.int(int64(math.Round(p.Longitude*coordScale)), 28)
		w.int(int64(math.Round(p.Latitude*coordScale)), 27)
		w.uint(encodeTenths(p.CourseOverGround, cogNotAvailable), 12)
		w.uint(encodeHeading(p.Heading), 9)
		w.uint(uint64(p.ReportTimestamp.UTC().Second()), 6)
		w.uint(0, 2)  // manoeuvre indicator
		w.uint(0, 3)  // spare
		w.uint(0, 1)  // RAIM
		w.uint(0, 19) // radio status
	case 18:
		w.uint(18, 6)
		w.uint(0, 2)
		w.uint(uint64(p.MMSI), 30)
		w.uint(0, 8)
		w.uint(encodeTenths(p.SpeedOverGround, sogNotAvailable), 10)
		w.bool(p.PositionAccuracy)
		w.int(int64(math.Round(p.Longitude*coordScale)), 28)
		w.int(int64(math.Round(p.Latitude*coordScale)), 27)
		w.uint(encodeTenths(p.CourseOverGround, cogNotAvailable), 12)
		w.uint(encodeHeading(p.Heading), 9)
		w.uint(uint64(p.ReportTimestamp.UTC().Second()), 6)
		w.uint(0, 29) // flags and radio status
	default:
		return "", 0, fmt.Errorf("encode position: unsupported message type %d", p.MessageType)
	}
	payload, fill := w.armor()
	return payload, fill, nil
}

// EncodeStaticVoyage armors a type 5 message.
func EncodeStaticVoyage(s *StaticInfo) (string, int) {
	w := &bitWriter{}
	w.uint(5, 6)
	w.uint(0, 2)
	w.uint(uint64(s.MMSI), 30)
	w.uint(0, 2)
	w.uint(uint64(derefInt(s.IMONumber)), 30)
	w.text(derefString(s.Callsign), 7)
	w.text(derefString(s.VesselName), 20)
	w.uint(uint64(derefInt(s.ShipType)), 8)
	writeDimensions(w, s.Dimensions)
	w.uint(1, 4) // EPFD: GPS
	if s.ETA != nil {
		w.uint(uint64(s.ETA.Month), 4)
		w.uint(uint64(s.ETA.Day), 5)
		w.uint(uint64(s.ETA.Hour), 5)
		w.uint(uint64(s.ETA.Minute), 6)
	} else {
		w.uint(0, 4)
		w.uint(0, 5)
		w.uint(24, 5)
		w.uint(60, 6)
	}
	var draught uint64
	if s.Draught != nil {
		draught = uint64(math.Round(*s.Draught * 10))
	}
	w.uint(draught, 8)
	w.text(derefString(s.Destination), 20)
	w.uint(0, 1) // DTE
	w.uint(0, 1)
	return w.armor()
}

// EncodeStaticDataReport armors type 24 part A (name) or part B (type, callsign, dimensions).
func EncodeStaticDataReport(s *StaticInfo, part int) (string, int) {
	w := &bitWriter{}
	w.uint(24, 6)
	w.uint(0, 2)
	w.uint(uint64(s.MMSI), 30)
	w.uint(uint64(part), 2)
	if part == 0 {
		w.text(derefString(s.VesselName), 20)
		w.uint(0, 8)
		return w.armor()
	}
	w.uint(uint64(derefInt(s.ShipType)), 8)
	w.text("", 7) // vendor id
	w.text(derefString(s.Callsign), 7)
	writeDimensions(w, s.Dimensions)
	w.uint(0, 6)
	return w.armor()
}

func writeDimensions(w *bitWriter, d *Dimensions) {
	if d == nil {
		d = &Dimensions{}
	}
	w.uint(uint64(d.ToBow), 9)
	w.uint(uint64(d.ToStern), 9)
	w.uint(uint64(d.ToPort), 6)
	w.uint(uint64(d.ToStarboard), 6)
}

func encodeTenths(v *float64, notAvailable uint64) uint64 {
	if v == nil {
		return notAvailable
	}
	return uint64(math.Round(*v * 10))
}

func encodeHeading(v *int) uint64 {
	if v == nil {
		return headingNotAvailable
	}
	return uint64(*v)
}

func encodeROT(v *float64) int64 {
	if v == nil {
		return rotNotAvailable
	}
	raw := math.Round(4.733 * math.Sqrt(math.Abs(*v)))
	if raw > 126 {
		raw = 126
	}
	if *v < 0 {
		raw = -raw
	}
	return int64(raw)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
