// Package listjoin renders string lists as human-readable phrases.
package listjoin

import "strings"

// Join joins names as "a, b & c". When an element already contains ", " the
// separator becomes "; ", and when one contains " & " the final connective
// becomes " and "; either switch also turns on the serial separator before
// the connective.
func Join(names []string) string {
	if len(names) == 0 {
		return ""
	}

	var (
		concat = strings.Join(names, "")
		comma  = ", "
		and    = " & "
		oxford = false
	)
	if strings.Contains(concat, ", ") {
		comma = "; "
		oxford = true
	}
	if strings.Contains(concat, " & ") {
		and = " and "
		oxford = true
	}

	head, last := names[:len(names)-1], names[len(names)-1]
	if len(head) == 0 {
		return last
	}

	var b strings.Builder
	b.WriteString(strings.Join(head, comma))
	if oxford {
		b.WriteString(strings.TrimSpace(comma))
	}
	b.WriteString(and)
	b.WriteString(last)
	return b.String()
}
