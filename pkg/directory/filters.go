package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// GeneralizedTimeLayout is the LDAP generalized-time format used for
// modifyTimestamp values and for the persisted sync watermark.
const GeneralizedTimeLayout = "20060102150405Z"

// Filter is a composable RFC 4515 search filter. Values are escaped on
// construction, so a Filter is always safe to send as-is.
type Filter struct {
	expr string
}

// String renders the filter as an RFC 4515 string.
func (f Filter) String() string {
	return f.expr
}

// IsZero reports whether the filter is empty.
func (f Filter) IsZero() bool {
	return f.expr == ""
}

// CN matches entries with the given common name.
func CN(cn string) Filter {
	return Filter{expr: fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(cn))}
}

// Institute matches entries belonging to the given institute.
func Institute(institute string) Filter {
	return Filter{expr: fmt.Sprintf("(institute=%s)", ldap.EscapeFilter(institute))}
}

// ModifiedSince matches entries modified at or after t.
func ModifiedSince(t time.Time) Filter {
	return Filter{expr: fmt.Sprintf("(modifyTimestamp>=%s)", t.UTC().Format(GeneralizedTimeLayout))}
}

// MemberOf matches entries whose CN is one of the given member ids. An
// empty member list yields a filter that matches nothing.
func MemberOf(members []string) Filter {
	if len(members) == 0 {
		return Filter{expr: "(!(objectClass=*))"}
	}
	parts := make([]Filter, 0, len(members))
	for _, m := range members {
		parts = append(parts, CN(m))
	}
	return Or(parts...)
}

// And combines filters conjunctively. Zero filters are skipped; a single
// remaining filter is returned unwrapped.
func And(filters ...Filter) Filter {
	return combine("&", filters)
}

// Or combines filters disjunctively.
func Or(filters ...Filter) Filter {
	return combine("|", filters)
}

func combine(op string, filters []Filter) Filter {
	var parts []string
	for _, f := range filters {
		if !f.IsZero() {
			parts = append(parts, f.expr)
		}
	}
	switch len(parts) {
	case 0:
		return Filter{}
	case 1:
		return Filter{expr: parts[0]}
	default:
		return Filter{expr: fmt.Sprintf("(%s%s)", op, strings.Join(parts, ""))}
	}
}
