package catalog

import (
	"strings"
	"unicode"
)

// stopwords are ignored when comparing name tokens.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true, "at": true,
	"&": true, "in": true, "on": true, "my": true, "to": true, "for": true,
}

// Resolve finds the business a free-text reference points at. Matching is
// tried in order: exact name (case-insensitive), substring in either
// direction, then the highest token overlap. Inactive businesses never match.
func Resolve(businesses []Business, ref string) (Business, bool) {
	want := normalizeName(ref)
	if want == "" {
		return Business{}, false
	}

	for i := range businesses {
		if businesses[i].Active && normalizeName(businesses[i].Name) == want {
			return businesses[i], true
		}
	}

	for i := range businesses {
		if !businesses[i].Active {
			continue
		}
		name := normalizeName(businesses[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(name, want) || strings.Contains(want, name) {
			return businesses[i], true
		}
	}

	wantTokens := Tokens(want)
	best, bestScore := -1, 0
	for i := range businesses {
		if !businesses[i].Active {
			continue
		}
		score := overlap(wantTokens, Tokens(businesses[i].Name))
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Business{}, false
	}
	return businesses[best], true
}

// Tokens splits text into lower-cased word tokens without stopwords.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		f = strings.TrimSuffix(f, "'s")
		if f != "" && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

func normalizeName(s string) string {
	return strings.Join(Tokens(s), " ")
}

func overlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	n := 0
	for _, t := range a {
		if set[t] {
			n++
			delete(set, t)
		}
	}
	return n
}
