// Package polyline implements Google's polyline algorithm for compact
// text encoding of coordinate sequences, documented at:
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm
//
// Area records persist their sampling lattice in this encoding so a stored
// area is inspectable without regenerating the grid.
package polyline

import "math"

// Coordinate is a geographic point with latitude and longitude in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Encode encodes coordinates at the standard precision of 5 decimal places.
// An empty or nil slice encodes to the empty string.
func Encode(coords []Coordinate) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*6)
	var prevLat, prevLon int
	for _, c := range coords {
		lat := int(math.Round(c.Lat * 1e5))
		lon := int(math.Round(c.Lon * 1e5))
		buf = appendValue(buf, lat-prevLat)
		buf = appendValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

// appendValue appends one signed delta in 5-bit chunks, least significant first.
func appendValue(buf []byte, v int) []byte {
	if v < 0 {
		v = ^(v << 1)
	} else {
		v <<= 1
	}
	for v >= 0x20 {
		buf = append(buf, byte((v&0x1f)|0x20)+63)
		v >>= 5
	}
	return append(buf, byte(v)+63)
}

// Decode decodes a polyline-encoded string. Returns nil for the empty string.
// Trailing garbage that does not form a complete lat/lon pair is dropped.
func Decode(encoded string) []Coordinate {
	if encoded == "" {
		return nil
	}

	coords := make([]Coordinate, 0, len(encoded)/4)
	var lat, lon int
	i := 0
	for i < len(encoded) {
		dLat, next := readValue(encoded, i)
		if next >= len(encoded) {
			break
		}
		dLon, after := readValue(encoded, next)
		lat += dLat
		lon += dLon
		coords = append(coords, Coordinate{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
		i = after
	}
	return coords
}

// readValue decodes one signed delta starting at index i and returns it with
// the index of the next unread byte.
func readValue(encoded string, i int) (int, int) {
	var result, shift int
	for i < len(encoded) {
		b := int(encoded[i]) - 63
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i
	}
	return result >> 1, i
}
