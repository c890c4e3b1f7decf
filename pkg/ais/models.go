package ais

import (
	"strconv"
	"time"
)

// MMSI is the Maritime Mobile Service Identity, the only key used across the tracker.
type MMSI int64

const (
	MinMMSI MMSI = 1
	MaxMMSI MMSI = 999999999
)

func (m MMSI) Valid() bool {
	return m >= MinMMSI && m <= MaxMMSI
}

func (m MMSI) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// ParseMMSI parses a decimal MMSI without range validation.
func ParseMMSI(s string) (MMSI, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return MMSI(v), nil
}

// NavStatus is the AIS navigational status code (0-15).
type NavStatus int

const (
	NavUnderWayEngine   NavStatus = 0
	NavAtAnchor         NavStatus = 1
	NavNotUnderCommand  NavStatus = 2
	NavRestricted       NavStatus = 3
	NavConstrained      NavStatus = 4
	NavMoored           NavStatus = 5
	NavAground          NavStatus = 6
	NavFishing          NavStatus = 7
	NavUnderWaySailing  NavStatus = 8
	NavAISSARTActive    NavStatus = 14
	NavStatusNotDefined NavStatus = 15
)

var navStatusNames = map[NavStatus]string{
	NavUnderWayEngine:   "Under way using engine",
	NavAtAnchor:         "At anchor",
	NavNotUnderCommand:  "Not under command",
	NavRestricted:       "Restricted manoeuverability",
	NavConstrained:      "Constrained by her draught",
	NavMoored:           "Moored",
	NavAground:          "Aground",
	NavFishing:          "Engaged in fishing",
	NavUnderWaySailing:  "Under way sailing",
	NavAISSARTActive:    "AIS-SART is active",
	NavStatusNotDefined: "Not defined",
}

func (s NavStatus) String() string {
	if name, ok := navStatusNames[s]; ok {
		return name
	}
	return "Reserved"
}

// Message is one decoded AIS message: *PositionReport, *StaticInfo or Unhandled.
type Message interface {
	Type() int
}

// PositionReport carries the kinematic part of message types 1, 2, 3, 18, 19 and 27.
// Optional values are nil when the transmitter reported "not available".
type PositionReport struct {
	MMSI             MMSI
	MessageType      int
	Latitude         float64
	Longitude        float64
	SpeedOverGround  *float64 // knots
	CourseOverGround *float64 // degrees
	Heading          *int     // degrees
	RateOfTurn       *float64 // degrees per minute, negative to port
	PositionAccuracy bool
	NavStatus        NavStatus
	ReportTimestamp  time.Time
	ReceivedAt       time.Time

	// Static is set for type 19, which carries name, type and dimensions alongside the position.
	Static *StaticInfo
}

func (p *PositionReport) Type() int { return p.MessageType }

// Dimensions are the distances from the GNSS reference point, in metres.
type Dimensions struct {
	ToBow       int `json:"to_bow"`
	ToStern     int `json:"to_stern"`
	ToPort      int `json:"to_port"`
	ToStarboard int `json:"to_starboard"`
}

func (d Dimensions) Length() int { return d.ToBow + d.ToStern }
func (d Dimensions) Beam() int   { return d.ToPort + d.ToStarboard }

// ETA is the estimated time of arrival as transmitted, with no year.
type ETA struct {
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// StaticInfo carries static and voyage data from types 5, 19 and 24.
// A nil field means the message did not provide it.
type StaticInfo struct {
	MMSI        MMSI
	MessageType int
	VesselName  *string
	Callsign    *string
	IMONumber   *int
	ShipType    *int
	Destination *string
	Draught     *float64 // metres
	Dimensions  *Dimensions
	ETA         *ETA
	UpdatedAt   time.Time
}

func (s *StaticInfo) Type() int { return s.MessageType }

// Unhandled is returned for well-formed messages of a type the tracker ignores.
type Unhandled struct {
	MessageType int
	MMSI        MMSI
}

func (u Unhandled) Type() int { return u.MessageType }
