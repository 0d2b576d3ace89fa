package filter

import (
	"strings"

	"github.com/coursedl/go-coursera/api/course"
)

// Rules hold the user-chosen inclusion/exclusion configuration.
// The zero value keeps everything.
type Rules struct {
	ExcludeFormats []string
}

// ParseRules builds Rules from a comma separated list of file formats,
// e.g. "mp4, pdf, srt". Empty entries and leading dots are dropped.
func ParseRules(s string) Rules {
	var formats []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		part = strings.TrimPrefix(part, ".")
		if part != "" {
			formats = append(formats, part)
		}
	}
	return Rules{ExcludeFormats: formats}
}

func (r Rules) IsEmpty() bool {
	return len(r.ExcludeFormats) == 0
}

// Excludes reports whether a resource of the given format is filtered out.
// Matching is case insensitive.
func (r Rules) Excludes(format string) bool {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	for _, f := range r.ExcludeFormats {
		if f == format {
			return true
		}
	}
	return false
}

// Apply returns the resources that survive the rules, preserving order.
// Pure function: the input slice is never modified.
func (r Rules) Apply(in []course.Resource) []course.Resource {
	out := make([]course.Resource, 0, len(in))
	for _, res := range in {
		if !r.Excludes(res.Format) {
			out = append(out, res)
		}
	}
	return out
}
