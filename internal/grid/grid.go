// Package grid derives the sampling lattice and route set laid over a
// monitored area's bounding box.
//
// Generation is pure and deterministic: the same bounds and resolution
// always reproduce bit-identical points and routes, which is what lets a
// resumed collection run rebuild its grid from the stored area record
// alone.
package grid

import (
	"errors"
	"fmt"

	"github.com/golang/geo/s2"
)

// ErrInvalidGrid indicates the requested bounds or resolution cannot
// produce a usable sampling grid.
var ErrInvalidGrid = errors.New("invalid grid")

const earthRadiusMeters = 6371000.0

// Coordinate is a geographic point with latitude and longitude in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Bounds is a geographic bounding box. Boxes spanning the antimeridian are
// not supported: East must strictly exceed West.
type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

// Validate checks that all coordinates are in range and that the box has
// strictly positive extent on both axes.
func (b Bounds) Validate() error {
	if !(b.South >= -90 && b.South <= 90) || !(b.North >= -90 && b.North <= 90) {
		return fmt.Errorf("%w: latitude out of range [-90, 90]", ErrInvalidGrid)
	}
	if !(b.West >= -180 && b.West <= 180) || !(b.East >= -180 && b.East <= 180) {
		return fmt.Errorf("%w: longitude out of range [-180, 180]", ErrInvalidGrid)
	}
	if b.North <= b.South {
		return fmt.Errorf("%w: north (%g) must exceed south (%g)", ErrInvalidGrid, b.North, b.South)
	}
	if b.East <= b.West {
		return fmt.Errorf("%w: east (%g) must exceed west (%g)", ErrInvalidGrid, b.East, b.West)
	}
	return nil
}

// Point is one lattice position. Row 0 is the southern edge, Col 0 the
// western edge.
type Point struct {
	Row int
	Col int
	Coordinate
}

// Route connects two axis-adjacent lattice points. Direction is fixed:
// horizontal routes run west to east, vertical routes south to north.
type Route struct {
	ID           string
	Origin       Coordinate
	Destination  Coordinate
	LengthMeters float64
}

// Grid is the full sampling lattice for one area: n² points and
// 2*n*(n-1) neighbor routes.
type Grid struct {
	Bounds     Bounds
	Resolution int
	Points     []Point // row-major from the south-west corner
	Routes     []Route // per point: horizontal neighbor, then vertical
}

// Coordinates returns the lattice coordinates in point order.
func (g *Grid) Coordinates() []Coordinate {
	coords := make([]Coordinate, len(g.Points))
	for i, p := range g.Points {
		coords[i] = p.Coordinate
	}
	return coords
}

// Generate lays an n×n lattice over the bounding box, corners inclusive,
// and connects horizontal and vertical neighbors. Fails with ErrInvalidGrid
// when n < 2 (no routes possible) or the bounds are degenerate.
func Generate(b Bounds, n int) (*Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: resolution %d, need at least 2", ErrInvalidGrid, n)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	stepLat := (b.North - b.South) / float64(n-1)
	stepLon := (b.East - b.West) / float64(n-1)

	points := make([]Point, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			points = append(points, Point{
				Row: row,
				Col: col,
				Coordinate: Coordinate{
					Lat: b.South + float64(row)*stepLat,
					Lon: b.West + float64(col)*stepLon,
				},
			})
		}
	}

	routes := make([]Route, 0, 2*n*(n-1))
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			origin := points[row*n+col].Coordinate
			if col+1 < n {
				routes = append(routes, newRoute(
					fmt.Sprintf("h-%d-%d", row, col),
					origin,
					points[row*n+col+1].Coordinate,
				))
			}
			if row+1 < n {
				routes = append(routes, newRoute(
					fmt.Sprintf("v-%d-%d", row, col),
					origin,
					points[(row+1)*n+col].Coordinate,
				))
			}
		}
	}

	return &Grid{
		Bounds:     b,
		Resolution: n,
		Points:     points,
		Routes:     routes,
	}, nil
}

func newRoute(id string, origin, destination Coordinate) Route {
	return Route{
		ID:           id,
		Origin:       origin,
		Destination:  destination,
		LengthMeters: DistanceMeters(origin, destination),
	}
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(a, b Coordinate) float64 {
	p := s2.LatLngFromDegrees(a.Lat, a.Lon)
	q := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p.Distance(q).Radians() * earthRadiusMeters
}
