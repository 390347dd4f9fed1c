package routes

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestDistance bounds how far a mistyped first segment may be from a
// route pattern and still be suggested.
const maxSuggestDistance = 3

// Suggest returns the string pattern closest to the first segment of path,
// for paths no rule matches. Regex rules and the root are never suggested.
func (r *Resolver) Suggest(path string) (string, bool) {
	segment := "/" + strings.SplitN(strings.Trim(path, "/"), "/", 2)[0]
	if segment == "/" {
		return "", false
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, rule := range r.rules {
		if rule.Regexp != nil || rule.Pattern == "" || rule.Pattern == "/" {
			continue
		}
		d := levenshtein.ComputeDistance(strings.ToLower(segment), strings.ToLower(rule.Pattern))
		if d < bestDist {
			best, bestDist = rule.Pattern, d
		}
	}
	return best, best != ""
}
