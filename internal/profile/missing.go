package profile

import "github.com/leapstack-labs/leapml/pkg/core"

// DefaultMissingTokens are the strings treated as missing in every column.
var DefaultMissingTokens = []string{
	"?", "??", "-", "--", "N/A", "n/a", "NA", "null", "NULL", "None", "NONE",
	"", " ", "unknown", "Unknown", "UNKNOWN", ".", "..", "...", "#N/A", "#NA",
	"NaN", "nan",
}

const maxSuspiciousValues = 10

// MissingDetector flags structural nulls and missing tokens.
type MissingDetector struct {
	tokens map[string]struct{}
}

// NewMissingDetector returns a detector for the default tokens plus extra.
func NewMissingDetector(extra ...string) *MissingDetector {
	d := &MissingDetector{tokens: make(map[string]struct{}, len(DefaultMissingTokens)+len(extra))}
	for _, tok := range DefaultMissingTokens {
		d.tokens[tok] = struct{}{}
	}
	for _, tok := range extra {
		d.tokens[tok] = struct{}{}
	}
	return d
}

// IsToken reports whether a present cell matches a missing token.
// Structural nulls never match; they are counted separately.
func (d *MissingDetector) IsToken(v any) bool {
	if core.IsNull(v) {
		return false
	}
	_, ok := d.tokens[core.FormatValue(v)]
	return ok
}

// MissingReport describes the missing cells of one column.
type MissingReport struct {
	// Mask is true for structural nulls and token matches.
	Mask     []bool
	Standard int
	Custom   int
	// Suspicious holds the first distinct token matches in column order.
	Suspicious []string
}

// Total returns the structural plus token count.
func (r *MissingReport) Total() int {
	return r.Standard + r.Custom
}

// Present returns the cells not flagged by the mask.
func (r *MissingReport) Present(col *core.Column) []any {
	out := make([]any, 0, len(col.Values)-r.Total())
	for i, v := range col.Values {
		if !r.Mask[i] {
			out = append(out, v)
		}
	}
	return out
}

// Detect builds the missing report for col. The column is not modified.
func (d *MissingDetector) Detect(col *core.Column) *MissingReport {
	r := &MissingReport{Mask: make([]bool, col.Len()), Suspicious: []string{}}
	seen := make(map[string]struct{})
	for i, v := range col.Values {
		if core.IsNull(v) {
			r.Mask[i] = true
			r.Standard++
			continue
		}
		if !d.IsToken(v) {
			continue
		}
		r.Mask[i] = true
		r.Custom++
		s := core.FormatValue(v)
		if _, dup := seen[s]; !dup && len(r.Suspicious) < maxSuspiciousValues {
			seen[s] = struct{}{}
			r.Suspicious = append(r.Suspicious, s)
		}
	}
	return r
}

// NullifyTokens returns a copy of col with token matches replaced by
// structural nulls, and the number of cells replaced.
func (d *MissingDetector) NullifyTokens(col *core.Column) (*core.Column, int) {
	out := col.Clone()
	n := 0
	for i, v := range out.Values {
		if d.IsToken(v) {
			out.Values[i] = nil
			n++
		}
	}
	return out, n
}
