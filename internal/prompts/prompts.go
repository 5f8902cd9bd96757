package prompts

import "strings"

// Render substitutes {name} placeholders in a configured template.
// Unknown placeholders are left untouched so a template typo stays
// visible in the generated prompt instead of vanishing silently.
func Render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
