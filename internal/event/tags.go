package event

import (
	"regexp"
	"strings"
)

const maxTags = 20

var hashtagRe = regexp.MustCompile(`#([a-zA-Z0-9_-]{1,32})`)

// Tags merges explicit tags with hashtags found in the description,
// lower-cased, de-duplicated and capped.
func Tags(explicit []string, description string) []string {
	seen := map[string]struct{}{}
	out := []string{}

	add := func(t string) bool {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if t == "" {
			return true
		}
		if _, ok := seen[t]; ok {
			return true
		}
		seen[t] = struct{}{}
		out = append(out, t)
		return len(out) < maxTags
	}

	for _, t := range explicit {
		if !add(t) {
			return out
		}
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(description, -1) {
		if !add(m[1]) {
			break
		}
	}
	return out
}
