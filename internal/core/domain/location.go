package domain

// GeoSource identifies how a location was obtained.
type GeoSource string

const (
	GeoSourceNone GeoSource = ""
	GeoSourceNav  GeoSource = "nav"
	GeoSourceIP   GeoSource = "ip"
)

// GeoResult is a resolved user location.
type GeoResult struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Type       GeoSource `json:"type"`
	Permission string    `json:"permission,omitempty"`
	Human      string    `json:"human"`
}
