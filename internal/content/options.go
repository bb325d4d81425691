package content

import "strings"

// Option is one entry of a static enumeration such as insurance types or tones.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options is an ordered enumeration looked up by value.
type Options []Option

// Label returns the display label for value, falling back to a humanized form.
func (o Options) Label(value string) string {
	for _, opt := range o {
		if opt.Value == value {
			if label := strings.TrimSpace(opt.Label); label != "" {
				return label
			}
			break
		}
	}
	return Humanize(value)
}

// Labels maps every value to its label, keeping order.
func (o Options) Labels(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, o.Label(v))
	}
	return out
}

// Contains reports whether value is a known option.
func (o Options) Contains(value string) bool {
	for _, opt := range o {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Humanize turns "term_life_living_benefits" into "Term Life Living Benefits".
func Humanize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, part := range parts {
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}
