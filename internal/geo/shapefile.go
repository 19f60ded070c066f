package geo

import (
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// countyShape is one county polygon with its bounding box for cheap rejection.
type countyShape struct {
	county  County
	polygon *geom.Polygon
	box     shp.Box
}

// ShapefileLocator answers point-in-county queries from a local TIGER
// county shapefile, with no network dependency.
type ShapefileLocator struct {
	shapes []countyShape
}

// LoadCountyShapefile reads a TIGER counties shapefile into memory.
func LoadCountyShapefile(path string) (*ShapefileLocator, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open county shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val)
	}

	loc := &ShapefileLocator{}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			skipped++
			continue
		}

		g := polygonToGeom(poly)
		if g == nil {
			skipped++
			continue
		}

		loc.shapes = append(loc.shapes, countyShape{
			county: County{
				Name:  attr("NAME"),
				FIPS:  attr("GEOID"),
				State: attr("STATEFP"),
			},
			polygon: g,
			box:     poly.BBox(),
		})
	}

	if skipped > 0 {
		zap.L().Debug("skipped county shapefile records", zap.Int("skipped", skipped))
	}
	return loc, nil
}

// Locate returns the county containing the point, or nil if none does.
func (l *ShapefileLocator) Locate(lat, lon float64) *County {
	for i := range l.shapes {
		s := &l.shapes[i]
		if lon < s.box.MinX || lon > s.box.MaxX || lat < s.box.MinY || lat > s.box.MaxY {
			continue
		}
		if polygonContains(s.polygon, lon, lat) {
			c := s.county
			return &c
		}
	}
	return nil
}

// polygonToGeom converts a shapefile polygon to a geom.Polygon. Every part
// becomes a ring; crossing parity handles holes without ring orientation
// bookkeeping.
func polygonToGeom(p *shp.Polygon) *geom.Polygon {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	g := geom.NewPolygon(geom.XY).SetSRID(4326)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 3 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)
		if err := g.Push(ring); err != nil {
			continue
		}
	}

	if g.NumLinearRings() == 0 {
		return nil
	}
	return g
}

// polygonContains reports whether (x, y) is inside the polygon using
// ray casting across all rings.
func polygonContains(p *geom.Polygon, x, y float64) bool {
	inside := false
	for r := 0; r < p.NumLinearRings(); r++ {
		coords := p.LinearRing(r).FlatCoords()
		n := len(coords) / 2
		for i, j := 0, n-1; i < n; j, i = i, i+1 {
			xi, yi := coords[i*2], coords[i*2+1]
			xj, yj := coords[j*2], coords[j*2+1]
			if (yi > y) != (yj > y) &&
				x < (xj-xi)*(y-yi)/(yj-yi)+xi {
				inside = !inside
			}
		}
	}
	return inside
}
