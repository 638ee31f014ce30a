package mapsession

import (
	"encoding/json"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/viewport"
)

// Inbound message types sent by the client.
const (
	InView    = "view"    // the map moved or was resized
	InHover   = "hover"   // pointer entered or left an item element
	InFilter  = "filter"  // one filter select changed
	InFilters = "filters" // the whole filter set was replaced
	InHash    = "hash"    // the URL fragment changed
	InClick   = "click"   // a marker was clicked
	InReset   = "reset"   // the reset link was followed
	InDevice  = "device"  // device geolocation state
	InLocate  = "locate"  // resolve the user's location
	InNearby  = "nearby"  // list the records nearest the user
)

// Outbound message types sent to the client.
const (
	OutInit        = "init"
	OutMarkers     = "markers"
	OutViewport    = "viewport"
	OutElements    = "elements"
	OutBanners     = "banners"
	OutHash        = "hash"
	OutLocated     = "located"
	OutLocateError = "locate_error"
	OutNearby      = "nearby"
	OutError       = "error"
)

// Inbound is a client message. Fields are used according to Type.
type Inbound struct {
	Type string `json:"type"`

	// view
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
	Zoom   int     `json:"zoom,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`

	// hover
	SC string `json:"sc,omitempty"` // short class, defaults to "i"
	ID int64  `json:"id,omitempty"`
	On bool   `json:"on,omitempty"`

	// filter, filters
	Key     string            `json:"key,omitempty"`
	Value   string            `json:"value,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`

	// hash
	Fragment string `json:"fragment,omitempty"`

	// click
	Marker string `json:"marker,omitempty"`

	// device
	Supported  bool   `json:"supported,omitempty"`
	Permission string `json:"permission,omitempty"`
	Fix        *Fix   `json:"fix,omitempty"`
	ErrorCode  int    `json:"error_code,omitempty"`

	// locate
	Source  string `json:"source,omitempty"`  // nav, ip or both
	Refresh bool   `json:"refresh,omitempty"` // drop the cached location first

	// nearby
	Kind    string `json:"kind,omitempty"` // inv or sg
	InvType string `json:"inv_type,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// Fix is a device position report.
type Fix struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Outbound is a server message.
type Outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// InitData describes a freshly placed map.
type InitData struct {
	InvType             string         `json:"inv_type"`
	Items               int            `json:"items"`
	Markers             int            `json:"markers"`
	ItemsWithoutMarkers []int64        `json:"items_without_markers"`
	Viewport            viewport.State `json:"viewport"`
}

// ElementChange toggles the page elements bound to an item.
type ElementChange struct {
	Attr    string `json:"attr"` // e.g. data-i="42"
	Visible bool   `json:"visible"`
}

// NearbyData is the answer to a nearby request.
type NearbyData struct {
	Items    []domain.ItemRecord `json:"items"`
	Location domain.GeoResult    `json:"location"`
	FarAway  bool                `json:"far_away"`
	Message  string              `json:"message,omitempty"`
}
