package auth

import "strings"

// DefaultExemptSegments lists first path segments that bypass
// authentication: error reporting must work for clients whose
// credentials are broken, registration questions are answered before
// an account is usable, and probes/metrics carry none.
var DefaultExemptSegments = []string{"report", "question", "healthz", "metrics"}

// ExemptPolicy decides per request path whether authentication is
// required at all. Matching is on the first path segment after the
// leading slash, so "/report" and "/report/anything" are both exempt
// when "report" is in the set.
type ExemptPolicy struct {
	segments map[string]bool
}

// NewExemptPolicy builds a policy from a set of exempt path segments.
func NewExemptPolicy(segments []string) *ExemptPolicy {
	p := &ExemptPolicy{segments: make(map[string]bool, len(segments))}
	for _, s := range segments {
		p.segments[strings.Trim(s, "/")] = true
	}
	return p
}

// IsExempt reports whether the path bypasses authentication. Exemption
// is absolute: an exempt path never receives a principal and handlers
// on those paths treat the identity as optional.
func (p *ExemptPolicy) IsExempt(path string) bool {
	seg := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return p.segments[seg]
}
