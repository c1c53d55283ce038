package planner

import (
	"regexp"
	"strings"
)

// complexPatterns match requests that warrant a task breakdown.
var complexPatterns = compileAll([]string{
	`create.*application`,
	`build.*system`,
	`implement.*feature`,
	`design.*architecture`,
	`setup.*project`,
	`develop.*with`,
	`make.*that.*and`,
	`multiple.*files`,
	`full.*stack`,
	`complete.*solution`,
	`write.*and.*test`,
	`create.*web`,
	`create.*gui`,
	`create.*api`,
	`analyze.*and`,
	`debug.*and.*fix`,
	`refactor.*code`,
	`add.*functionality`,
	`integrate.*with`,
	`multiple.*steps`,
	`requires.*steps`,
	`improve.*project`,
	`enhance.*project`,
	`several.*tasks`,
})

// simplePatterns match requests that never need a breakdown, checked
// before the complex patterns.
var simplePatterns = compileAll([]string{
	`^what\s+is`,
	`^explain`,
	`^show\s+me`,
	`^tell\s+me`,
	`^list`,
	`^hello`,
	`^hi\b`,
	`^\s*$`,
})

func compileAll(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

// IsComplex reports whether a request should be broken into tasks
// rather than answered directly.
func IsComplex(request string) bool {
	lower := strings.ToLower(request)

	for _, re := range simplePatterns {
		if re.MatchString(lower) {
			return false
		}
	}
	for _, re := range complexPatterns {
		if re.MatchString(lower) {
			return true
		}
	}

	// Long requests usually need a breakdown.
	if len(strings.Fields(request)) > 15 {
		return true
	}

	// Multiple chained actions do too.
	for _, conj := range []string{" and ", " then ", " also ", " plus "} {
		if strings.Contains(lower, conj) {
			return true
		}
	}
	return false
}
