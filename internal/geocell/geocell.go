// Package geocell implements CDB's 1°-latitude by variable-longitude
// cell addressing (§4.B), grounded on CDBGeoCell.{h,cpp} in the original
// CDBTo3DTiles source: latitude zone table, directory-name formatting,
// and the filename-parsing helpers tile identity builds on.
package geocell

import (
	"fmt"
	"path"
)

// GeoCell is a 1°x1° (latitude x variable longitude) cell on WGS84.
type GeoCell struct {
	lat, lon int
}

// New constructs a GeoCell, validating the CDB range for latitude and
// longitude in integer degrees.
func New(lat, lon int) (GeoCell, error) {
	if lat < -90 || lat > 90 {
		return GeoCell{}, fmt.Errorf("latitude %d is out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return GeoCell{}, fmt.Errorf("longitude %d is out of range", lon)
	}
	return GeoCell{lat: lat, lon: lon}, nil
}

// Latitude returns the integer south-west latitude in degrees.
func (g GeoCell) Latitude() int { return g.lat }

// Longitude returns the integer south-west longitude in degrees.
func (g GeoCell) Longitude() int { return g.lon }

// Zone returns the latitude zone index 0..10 used by the longitude
// extent table below.
func (g GeoCell) Zone() (int, error) {
	switch {
	case g.lat >= 89 && g.lat < 90:
		return 10, nil
	case g.lat >= 80 && g.lat < 89:
		return 9, nil
	case g.lat >= 75 && g.lat < 80:
		return 8, nil
	case g.lat >= 70 && g.lat < 75:
		return 7, nil
	case g.lat >= 50 && g.lat < 70:
		return 6, nil
	case g.lat >= -50 && g.lat < 50:
		return 5, nil
	case g.lat >= -70 && g.lat < -50:
		return 4, nil
	case g.lat >= -75 && g.lat < -70:
		return 3, nil
	case g.lat >= -80 && g.lat < -75:
		return 2, nil
	case g.lat >= -89 && g.lat < -80:
		return 1, nil
	case g.lat >= -90 && g.lat < -89:
		return 0, nil
	default:
		return 0, fmt.Errorf("latitude %d out of bound", g.lat)
	}
}

// LonExtentDegrees returns the cell's longitude width in degrees,
// latitude-dependent per the 11-zone CDB table.
func (g GeoCell) LonExtentDegrees() (int, error) {
	switch {
	case g.lat >= 89 && g.lat < 90:
		return 12, nil
	case g.lat >= 80 && g.lat < 89:
		return 6, nil
	case g.lat >= 75 && g.lat < 80:
		return 4, nil
	case g.lat >= 70 && g.lat < 75:
		return 3, nil
	case g.lat >= 50 && g.lat < 70:
		return 2, nil
	case g.lat >= -50 && g.lat < 50:
		return 1, nil
	case g.lat >= -70 && g.lat < -50:
		return 2, nil
	case g.lat >= -75 && g.lat < -70:
		return 3, nil
	case g.lat >= -80 && g.lat < -75:
		return 4, nil
	case g.lat >= -89 && g.lat < -80:
		return 6, nil
	case g.lat >= -90 && g.lat < -89:
		return 12, nil
	default:
		return 0, fmt.Errorf("latitude %d out of bound", g.lat)
	}
}

// LatExtentDegrees is always 1 for a CDB geocell.
func (g GeoCell) LatExtentDegrees() int { return 1 }

// LatitudeDirectoryName returns the "N32"/"S32" directory component.
func (g GeoCell) LatitudeDirectoryName() string {
	if g.lat < 0 {
		return fmt.Sprintf("S%d", -g.lat)
	}
	return fmt.Sprintf("N%d", g.lat)
}

// LongitudeDirectoryName returns the "E118"/"W118" directory component,
// longitude zero-padded to 3 digits.
func (g GeoCell) LongitudeDirectoryName() string {
	if g.lon < 0 {
		return fmt.Sprintf("W%03d", -g.lon)
	}
	return fmt.Sprintf("E%03d", g.lon)
}

// RelativePath returns "Tiles/<Lat>/<Lon>".
func (g GeoCell) RelativePath() string {
	return path.Join("Tiles", g.LatitudeDirectoryName(), g.LongitudeDirectoryName())
}

// ParseLatFromFilename reads a leading hemisphere char + integer
// latitude (e.g. "N32...", "S05...") and rejects anything malformed or
// out of range.
func ParseLatFromFilename(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	ns := s[0]
	if ns != 'N' && ns != 'S' {
		return 0, false
	}
	n, rest := scanUint(s[1:])
	if rest == 0 {
		return 0, false
	}
	lat := n
	if ns == 'S' {
		lat = -lat
	}
	if lat < -90 || lat >= 90 {
		return 0, false
	}
	return lat, true
}

// ParseLonFromFilename reads a leading hemisphere char + integer
// longitude (e.g. "W118...", "E007...").
func ParseLonFromFilename(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	we := s[0]
	if we != 'W' && we != 'E' {
		return 0, false
	}
	n, rest := scanUint(s[1:])
	if rest == 0 {
		return 0, false
	}
	lon := n
	if we == 'W' {
		lon = -lon
	}
	if lon < -180 || lon > 180 {
		return 0, false
	}
	return lon, true
}

// scanUint consumes the leading run of ASCII digits in s, returning the
// parsed value and how many bytes were consumed (0 if s doesn't start
// with a digit).
func scanUint(s string) (int, int) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, 0
	}
	v := 0
	for _, c := range s[:i] {
		v = v*10 + int(c-'0')
	}
	return v, i
}
