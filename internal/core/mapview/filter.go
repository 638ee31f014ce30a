package mapview

import "github.com/samirrijal/groupmap/internal/core/domain"

// FilterSet maps attribute keys to the selected value. Keys are ANDed.
type FilterSet map[string]string

// Clone returns an independent copy without unset (empty-valued) keys.
func (fs FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(fs))
	for k, v := range fs {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Set changes one key; an empty value removes it. It reports whether the set
// changed.
func (fs FilterSet) Set(key, value string) bool {
	old, had := fs[key]
	if value == "" {
		delete(fs, key)
		return had
	}
	fs[key] = value
	return !had || old != value
}

// Matches reports whether attrs satisfy every active key. Empty values are
// unset and match everything.
func (fs FilterSet) Matches(attrs map[string]domain.Attribute) bool {
	for key, want := range fs {
		if want == "" {
			continue
		}
		a, ok := attrs[key]
		if !ok || !attributeMatches(a, want) {
			return false
		}
	}
	return true
}

func attributeMatches(a domain.Attribute, want string) bool {
	switch a.Kind {
	case domain.AttrScalar:
		return a.Value == want
	case domain.AttrTerm:
		return len(a.Terms) > 0 && a.Terms[0].Slug == want
	case domain.AttrList:
		for _, t := range a.Terms {
			if t.Slug == want {
				return true
			}
		}
		return false
	default:
		return false
	}
}
