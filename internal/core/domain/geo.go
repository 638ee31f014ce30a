package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84). Source records may
// omit either coordinate.
type GeoPoint struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Point builds a GeoPoint with both coordinates set.
func Point(lat, lng float64) GeoPoint {
	return GeoPoint{Lat: &lat, Lng: &lng}
}

// Valid reports whether both coordinates are present.
func (p GeoPoint) Valid() bool {
	return p.Lat != nil && p.Lng != nil
}

// Rounded returns the point with each present coordinate rounded to 3 decimals.
func (p GeoPoint) Rounded() GeoPoint {
	out := GeoPoint{}
	if p.Lat != nil {
		v := round3(*p.Lat)
		out.Lat = &v
	}
	if p.Lng != nil {
		v := round3(*p.Lng)
		out.Lng = &v
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// GeoPoints is the geo field of an item record. It decodes from null, a
// single {lat,lng} object or a list of them.
type GeoPoints []GeoPoint

func (g *GeoPoints) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*g = nil
		return nil
	case b[0] == '[':
		var pts []GeoPoint
		if err := json.Unmarshal(b, &pts); err != nil {
			return err
		}
		*g = pts
		return nil
	default:
		var p GeoPoint
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*g = GeoPoints{p}
		return nil
	}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}
