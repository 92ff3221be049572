package conversation

import (
	"strconv"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
)

// SelectionKind classifies a follow-up to an enumerated list.
type SelectionKind string

const (
	SelectionPick    SelectionKind = "pick"
	SelectionAffirm  SelectionKind = "affirm"
	SelectionDecline SelectionKind = "decline"
)

// Selection is a recognized follow-up to a listed set of businesses.
type Selection struct {
	Kind     SelectionKind
	Business ListedBusiness
}

// maxFollowUpWords bounds how long an utterance may be and still count as a
// follow-up rather than a new request.
const maxFollowUpWords = 8

var ordinals = map[string]int{
	"first": 1, "1st": 1, "one": 1,
	"second": 2, "2nd": 2, "two": 2,
	"third": 3, "3rd": 3, "three": 3,
	"fourth": 4, "4th": 4, "four": 4,
	"fifth": 5, "5th": 5, "five": 5,
}

var affirmations = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "sure": true, "ok": true, "okay": true,
	"please": true, "perfect": true, "great": true, "sounds": true,
}

var declines = map[string]bool{
	"no": true, "nope": true, "none": true, "neither": true, "nah": true,
}

// DetectSelection recognizes short follow-ups to a listed set of businesses:
// a name echo, an ordinal ("the second one", "#2", "last"), or a plain yes/no.
// A yes picks the first listed business. Longer utterances are never treated
// as follow-ups.
func DetectSelection(msg string, listed []ListedBusiness) (Selection, bool) {
	if len(listed) == 0 {
		return Selection{}, false
	}
	words := strings.Fields(strings.ToLower(msg))
	if len(words) == 0 || len(words) > maxFollowUpWords {
		return Selection{}, false
	}

	if b, ok := matchName(msg, listed); ok {
		return Selection{Kind: SelectionPick, Business: b}, true
	}

	for _, w := range words {
		w = strings.Trim(w, ".,!?#()")
		if w == "last" {
			return Selection{Kind: SelectionPick, Business: listed[len(listed)-1]}, true
		}
		n, ok := ordinals[w]
		if !ok && len(words) <= 3 {
			if v, err := strconv.Atoi(w); err == nil {
				n, ok = v, true
			}
		}
		if ok && n >= 1 && n <= len(listed) {
			return Selection{Kind: SelectionPick, Business: listed[n-1]}, true
		}
	}

	first := strings.Trim(words[0], ".,!?")
	switch {
	case declines[first]:
		return Selection{Kind: SelectionDecline}, true
	case affirmations[first]:
		return Selection{Kind: SelectionAffirm, Business: listed[0]}, true
	}
	return Selection{}, false
}

// matchName finds a listed business whose distinctive name tokens appear in msg.
// Ambiguous echoes that match several businesses equally are rejected.
func matchName(msg string, listed []ListedBusiness) (ListedBusiness, bool) {
	msgTokens := make(map[string]bool)
	for _, t := range catalog.Tokens(msg) {
		msgTokens[t] = true
	}
	best, bestScore, tie := -1, 0, false
	for i, b := range listed {
		score := 0
		for _, t := range catalog.Tokens(b.Name) {
			if msgTokens[t] {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = i, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if best < 0 || tie {
		return ListedBusiness{}, false
	}
	return listed[best], true
}
