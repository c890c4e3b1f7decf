package vessel

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aistrack/platform/pkg/ais"
)

// The map client expects numeric position and static fields as strings.
// Unknown values are rendered as null.

type PositionJSON struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	SOG         *string `json:"sog"`
	COG         *string `json:"cog"`
	Heading     *string `json:"heading"`
	ROT         *string `json:"rot"`
	NavStatus   string  `json:"nav_status"`
	Accuracy    string  `json:"accuracy"`
	Timestamp   string  `json:"timestamp"`
	LastSeen    string  `json:"last_seen"`
	MessageType string  `json:"message_type"`
}

type InfoJSON struct {
	VesselName  *string `json:"vessel_name"`
	Callsign    *string `json:"callsign"`
	IMO         *string `json:"imo"`
	ShipType    *string `json:"ship_type"`
	Destination *string `json:"destination"`
	Draught     *string `json:"draught"`
	Length      *string `json:"length,omitempty"`
	Beam        *string `json:"beam,omitempty"`
	ETA         *string `json:"eta,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

type RecordJSON struct {
	MMSI     int64         `json:"mmsi"`
	Position *PositionJSON `json:"position"`
	Info     *InfoJSON     `json:"info"`
	Stale    bool          `json:"stale"`
}

func NewRecordJSON(r Record, now time.Time, staleAfter time.Duration) RecordJSON {
	out := RecordJSON{
		MMSI:  int64(r.MMSI),
		Stale: r.Stale(now, staleAfter),
	}
	if r.Position != nil {
		out.Position = NewPositionJSON(r.Position)
	}
	if r.Static != nil {
		out.Info = NewInfoJSON(r.Static)
	}
	return out
}

func NewPositionJSON(p *ais.PositionReport) *PositionJSON {
	return &PositionJSON{
		Lat:         strconv.FormatFloat(p.Latitude, 'f', 6, 64),
		Lon:         strconv.FormatFloat(p.Longitude, 'f', 6, 64),
		SOG:         floatString(p.SpeedOverGround, 1),
		COG:         floatString(p.CourseOverGround, 1),
		Heading:     intString(p.Heading),
		ROT:         floatString(p.RateOfTurn, 1),
		NavStatus:   strconv.Itoa(int(p.NavStatus)),
		Accuracy:    strconv.FormatBool(p.PositionAccuracy),
		Timestamp:   p.ReportTimestamp.UTC().Format(time.RFC3339),
		LastSeen:    p.ReceivedAt.UTC().Format(time.RFC3339),
		MessageType: strconv.Itoa(p.MessageType),
	}
}

func NewInfoJSON(s *ais.StaticInfo) *InfoJSON {
	info := &InfoJSON{
		VesselName:  s.VesselName,
		Callsign:    s.Callsign,
		IMO:         intString(s.IMONumber),
		ShipType:    intString(s.ShipType),
		Destination: s.Destination,
		Draught:     floatString(s.Draught, 1),
		UpdatedAt:   s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.Dimensions != nil {
		length, beam := s.Dimensions.Length(), s.Dimensions.Beam()
		info.Length = intString(&length)
		info.Beam = intString(&beam)
	}
	if s.ETA != nil {
		eta := fmt.Sprintf("%02d-%02d %02d:%02d", s.ETA.Month, s.ETA.Day, s.ETA.Hour, s.ETA.Minute)
		info.ETA = &eta
	}
	return info
}

func floatString(v *float64, prec int) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatFloat(*v, 'f', prec, 64)
	return &s
}

func intString(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}
