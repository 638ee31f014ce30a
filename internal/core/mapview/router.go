package mapview

import (
	"log/slog"
	"strconv"
	"strings"
)

// Short class names used in element attributes and hash identifiers.
const (
	ShortClassInvolvement = "i"
	ShortClassPerson      = "p"
	ShortClassMappable    = "mpbl"
)

// Identity names an item across the page: short class plus numeric id.
type Identity struct {
	ShortClass string `json:"sc"`
	ID         int64  `json:"id"`
}

// ParseShortClass validates a client supplied short class. An empty one
// names an involvement.
func ParseShortClass(sc string) (string, bool) {
	switch sc = strings.ToLower(sc); sc {
	case "":
		return ShortClassInvolvement, true
	case ShortClassInvolvement, ShortClassPerson, ShortClassMappable:
		return sc, true
	default:
		return "", false
	}
}

// PageIdentity is the registrant of page-level actions that target no item.
var PageIdentity = Identity{ShortClass: ShortClassMappable}

// String returns the hash identifier form, e.g. "i42".
func (id Identity) String() string {
	return id.ShortClass + strconv.FormatInt(id.ID, 10)
}

// DataAttr returns the element attribute binding the item, e.g. data-i="42".
func (id Identity) DataAttr() string {
	return "data-" + id.ShortClass + `="` + strconv.FormatInt(id.ID, 10) + `"`
}

// Action is a user action that can be deep-linked through the URL fragment.
type Action int

const (
	ActionNone Action = iota
	ActionShowOnMap
	ActionJoin
	ActionContact
	ActionLocate
)

var actionNames = map[Action]string{
	ActionShowOnMap: "showonmap",
	ActionJoin:      "join",
	ActionContact:   "contact",
	ActionLocate:    "locate",
}

func (a Action) String() string {
	return actionNames[a]
}

// ParseAction resolves a case-insensitive action name.
func ParseAction(name string) (Action, bool) {
	name = strings.ToLower(name)
	for a, n := range actionNames {
		if n == name {
			return a, true
		}
	}
	return ActionNone, false
}

// HashPrefix starts every routed fragment.
const HashPrefix = "tp-"

type route struct {
	uid string
	fn  func()
}

// Router maps URL fragments of the form tp-<action>[-<shortclass><id>] to
// handlers registered per item.
type Router struct {
	routes  map[Action][]route
	current string
	log     *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{routes: make(map[Action][]route), log: log}
}

// Register binds fn to action for the given item. Registering the same
// action twice for one item keeps the first handler.
func (r *Router) Register(a Action, id Identity, fn func()) {
	if id.ShortClass == "" {
		r.log.Warn("action cannot be registered without a short class", "action", a.String())
		return
	}
	uid := strings.ToLower(id.String())
	for _, rt := range r.routes[a] {
		if rt.uid == uid {
			return
		}
	}
	r.routes[a] = append(r.routes[a], route{uid: uid, fn: fn})
}

// Registered reports how many items registered the action.
func (r *Router) Registered(a Action) int {
	return len(r.routes[a])
}

// HashFor returns the fragment that deep-links the action on the item, or ""
// when nothing registered the action.
func (r *Router) HashFor(a Action, id Identity) string {
	switch n := r.Registered(a); {
	case n == 1:
		return HashPrefix + a.String()
	case n > 1:
		return HashPrefix + a.String() + "-" + strings.ToLower(id.String())
	default:
		return ""
	}
}

// Apply records the fragment for the action as the current one and returns it.
func (r *Router) Apply(a Action, id Identity) string {
	if h := r.HashFor(a, id); h != "" {
		r.current = h
	}
	return r.current
}

// Current returns the current fragment without the leading '#'.
func (r *Router) Current() string { return r.current }

// Clear resets the current fragment.
func (r *Router) Clear() { r.current = "" }

// Handle dispatches a fragment. When limit is not ActionNone only that action
// is considered. It reports whether a handler ran.
func (r *Router) Handle(fragment string, limit Action) bool {
	fragment = strings.TrimPrefix(fragment, "#")
	if !strings.HasPrefix(fragment, HashPrefix) {
		return false
	}

	parts := strings.Split(strings.ToLower(fragment[len(HashPrefix):]), "-")
	a, ok := ParseAction(parts[0])
	if !ok || (limit != ActionNone && a != limit) {
		return false
	}
	routes := r.routes[a]
	if len(routes) == 0 {
		return false
	}

	if len(parts) == 1 {
		if len(routes) == 1 {
			r.current = fragment
			routes[0].fn()
			return true
		}
		return false
	}
	for _, rt := range routes {
		if rt.uid == parts[1] {
			r.current = fragment
			rt.fn()
			return true
		}
	}
	return false
}
