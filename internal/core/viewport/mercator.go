package viewport

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	tileSize = 256.0
	maxLat   = 85.05112878
	// halfWorld is half the EPSG:3857 extent in meters.
	halfWorld = orb.EarthRadius * math.Pi
)

func worldSize(zoom int) float64 {
	return tileSize * math.Exp2(float64(zoom))
}

// toPixel converts a lng/lat point to world pixel coordinates at zoom.
func toPixel(p orb.Point, zoom int) (x, y float64) {
	scale := worldSize(zoom)
	p[1] = math.Max(-maxLat, math.Min(maxLat, p.Lat()))
	m := project.WGS84.ToMercator(p)
	x = scale * (m.X() + halfWorld) / (2 * halfWorld)
	y = scale * (halfWorld - m.Y()) / (2 * halfWorld)
	return x, y
}

func fromPixel(x, y float64, zoom int) orb.Point {
	scale := worldSize(zoom)
	m := orb.Point{x/scale*2*halfWorld - halfWorld, halfWorld - y/scale*2*halfWorld}
	p := project.Mercator.ToWGS84(m)
	return orb.Point{
		math.Max(-180, math.Min(180, p.Lon())),
		math.Max(-maxLat, math.Min(maxLat, p.Lat())),
	}
}

// visibleBound returns the rectangle shown by a w×h pixel viewport.
func visibleBound(center orb.Point, zoom, w, h int) orb.Bound {
	cx, cy := toPixel(center, zoom)
	sw := fromPixel(cx-float64(w)/2, cy+float64(h)/2, zoom)
	ne := fromPixel(cx+float64(w)/2, cy-float64(h)/2, zoom)
	return orb.Bound{Min: sw, Max: ne}
}

// fitZoom returns the highest zoom in [min,max] at which b fits in w×h pixels.
func fitZoom(b orb.Bound, minZoom, maxZoom, w, h int) int {
	for z := maxZoom; z > minZoom; z-- {
		x1, y1 := toPixel(b.Min, z)
		x2, y2 := toPixel(b.Max, z)
		if math.Abs(x2-x1) <= float64(w) && math.Abs(y1-y2) <= float64(h) {
			return z
		}
	}
	return minZoom
}
