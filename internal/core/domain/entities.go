package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// ItemRecord is a location-bearing record (an involvement or small group) as
// delivered by the sync batch and returned by nearby queries.
type ItemRecord struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	PostID     int64                `json:"post_id"`
	InvType    string               `json:"inv_type,omitempty"`
	Geo        GeoPoints            `json:"geo"`
	Color      string               `json:"color,omitempty"`
	Attributes map[string]Attribute `json:"attributes,omitempty"`
	Icon       *Label               `json:"icon,omitempty"`
	Distance   *float64             `json:"distance,omitempty"` // meters, nearby queries only
	UpdatedAt  time.Time            `json:"updated_at,omitempty"`
}

// Label is text drawn on a marker pin.
type Label struct {
	Text       string `json:"text"`
	Color      string `json:"color,omitempty"`
	FontSize   string `json:"font_size,omitempty"`
	FontFamily string `json:"font_family,omitempty"`
}

// AttributeKind tells how an attribute value was encoded.
type AttributeKind int

const (
	AttrNull AttributeKind = iota
	AttrScalar
	AttrTerm
	AttrList
)

// Term is a taxonomy term attached to an item.
type Term struct {
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}

// Attribute is a filterable item attribute: null, a scalar, a single term
// object or a list of terms.
type Attribute struct {
	Kind  AttributeKind
	Value string
	Terms []Term
}

// Scalar builds a scalar attribute.
func Scalar(v string) Attribute { return Attribute{Kind: AttrScalar, Value: v} }

// TermAttr builds a single-term attribute.
func TermAttr(slug string) Attribute {
	return Attribute{Kind: AttrTerm, Terms: []Term{{Slug: slug}}}
}

// TermList builds a list attribute from slugs.
func TermList(slugs ...string) Attribute {
	a := Attribute{Kind: AttrList, Terms: make([]Term, 0, len(slugs))}
	for _, s := range slugs {
		a.Terms = append(a.Terms, Term{Slug: s})
	}
	return a
}

func (a *Attribute) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Attribute{Kind: AttrNull}
	case b[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		out := Attribute{Kind: AttrList, Terms: make([]Term, 0, len(raw))}
		for _, r := range raw {
			r = bytes.TrimSpace(r)
			if len(r) == 0 || r[0] != '{' {
				continue // only term objects carry a slug
			}
			var t Term
			if err := json.Unmarshal(r, &t); err != nil {
				return err
			}
			out.Terms = append(out.Terms, t)
		}
		*a = out
	case b[0] == '{':
		var t Term
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*a = Attribute{Kind: AttrTerm, Terms: []Term{t}}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Attribute{Kind: AttrScalar, Value: s}
	default:
		*a = Attribute{Kind: AttrScalar, Value: string(b)}
	}
	return nil
}

func (a Attribute) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AttrScalar:
		return json.Marshal(a.Value)
	case AttrTerm:
		if len(a.Terms) == 0 {
			return []byte("null"), nil
		}
		return json.Marshal(a.Terms[0])
	case AttrList:
		if a.Terms == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Terms)
	default:
		return []byte("null"), nil
	}
}

// SyncEvent announces that a batch of records was loaded for an involvement type.
type SyncEvent struct {
	InvType  string    `json:"inv_type"`
	Count    int       `json:"count"`
	SyncedAt time.Time `json:"synced_at"`
}

// TypeStats summarizes the stored records of one involvement type.
type TypeStats struct {
	InvType  string    `json:"inv_type"`
	Items    int       `json:"items"`
	Located  int       `json:"located"`
	LastSync time.Time `json:"last_sync"`
}
