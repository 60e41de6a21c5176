package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// Fix describes one emulated GPS fix.
type Fix struct {
	Position   Position
	Time       time.Time
	Speed      Speed   // speed over ground
	Course     Azimuth // track made good
	Satellites int
	HDOP       float64
	Altitude   float64 // meters above mean sea level
}

func sentence(body string) string {
	return nmea.SentenceStart + body + nmea.ChecksumSep + nmea.Checksum(body)
}

// nmeaCoordinate formats v as (d)ddmm.mmmm with the given degree width.
func nmeaCoordinate(v float64, width int) string {
	minutes := roundTo(math.Abs(v)*60, 4)
	deg := math.Floor(minutes / 60)
	mins := minutes - deg*60
	return fmt.Sprintf("%0*d%07.4f", width, int(deg), mins)
}

// FormatRMC renders the recommended minimum sentence for f.
func FormatRMC(f Fix) string {
	p := f.Position.Normalize()
	t := f.Time.UTC()
	body := strings.Join([]string{
		"GPRMC",
		t.Format("150405.00"),
		"A",
		nmeaCoordinate(float64(p.Latitude), 2), string(p.Latitude.Hemisphere()),
		nmeaCoordinate(float64(p.Longitude), 3), string(p.Longitude.Hemisphere()),
		strconv.FormatFloat(f.Speed.ToUnit(Knots).Value, 'f', 1, 64),
		strconv.FormatFloat(float64(f.Course.Normalize()), 'f', 1, 64),
		t.Format("020106"),
		"", "",
	}, ",")
	return sentence(body)
}

// FormatGGA renders the fix data sentence for f.
func FormatGGA(f Fix) string {
	p := f.Position.Normalize()
	body := strings.Join([]string{
		"GPGGA",
		f.Time.UTC().Format("150405.00"),
		nmeaCoordinate(float64(p.Latitude), 2), string(p.Latitude.Hemisphere()),
		nmeaCoordinate(float64(p.Longitude), 3), string(p.Longitude.Hemisphere()),
		"1",
		fmt.Sprintf("%02d", f.Satellites),
		strconv.FormatFloat(f.HDOP, 'f', 1, 64),
		strconv.FormatFloat(f.Altitude, 'f', 1, 64), "M",
		"0.0", "M",
		"", "",
	}, ",")
	return sentence(body)
}

// ParseNMEAPosition extracts the position from an RMC or GGA sentence of
// any talker after verifying its checksum. Sentences without a valid fix
// are rejected.
func ParseNMEAPosition(s string) (Position, error) {
	fail := func(msg string) (Position, error) {
		return InvalidPosition, &FormatError{Kind: "nmea", Input: s, Msg: msg}
	}

	parsed, err := nmea.Parse(strings.TrimSpace(s))
	if err != nil {
		return fail(err.Error())
	}

	var lat, lon float64
	switch m := parsed.(type) {
	case nmea.RMC:
		if m.Validity != nmea.ValidRMC {
			return fail("no valid fix")
		}
		lat, lon = m.Latitude, m.Longitude
	case nmea.GGA:
		if m.FixQuality == nmea.Invalid {
			return fail("no valid fix")
		}
		lat, lon = m.Latitude, m.Longitude
	default:
		return fail("unsupported sentence " + parsed.DataType())
	}
	return NewPosition(lat, lon), nil
}
