package crash

import "strings"

// Filter matches fatal-error messages against known-benign crash
// signatures. The signature set is fixed at construction; membership is
// case-sensitive substring containment against the raw format string, not
// the formatted message, since the format string is what stays stable
// across occurrences.
type Filter struct {
	signatures []string
}

// NewFilter creates a filter over the configured signatures.
func NewFilter(signatures []string) *Filter {
	copied := make([]string, len(signatures))
	copy(copied, signatures)
	return &Filter{signatures: copied}
}

// IsKnown reports whether the raw format string carries any configured
// signature.
func (f *Filter) IsKnown(rawFormat string) bool {
	for _, sig := range f.signatures {
		if sig == "" {
			continue
		}
		if strings.Contains(rawFormat, sig) {
			return true
		}
	}
	return false
}
