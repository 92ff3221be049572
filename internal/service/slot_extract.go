package service

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
)

var (
	reNameIntro  = regexp.MustCompile(`(?i:\bi['’]?m|\bi am|\bmy name is|\bname is|\bthis is|\bunder(?: the name(?: of)?)?|\bcall me)\s+([A-Z][a-zA-Z'-]+(?:\s+[A-Z][a-zA-Z'-]+)?)`)
	rePartyFor   = regexp.MustCompile(`(?i)\b(?:for|party of|group of|table for)\s+(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|a couple)(\s*(?:am|pm|a\.m|p\.m|:\d\d|o'?clock))?`)
	rePartyCount = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\s+(?:people|persons|guests|adults|pax|of us)\b`)
	rePhone      = regexp.MustCompile(`\+?\(?\d[\d\s().-]{5,}\d`)
	reAddress    = regexp.MustCompile(`(?i)\b(?:deliver(?:y|ed)?(?: it)? to|address is|my address:?|send it to)\s+([^.!?]+)`)
	reNotes      = regexp.MustCompile(`(?i)\b(?:notes?|special requests?|allerg(?:y|ic to)|please note)[:\s]+([^.!?]+)`)
	reBusinessAt = regexp.MustCompile(`(?i:\bat|\bfrom)\s+((?:[Tt]he\s+)?[A-Z][\w'&]*(?:\s+[A-Z][\w'&]*)*)`)
	reQuantity   = regexp.MustCompile(`(?i)\b(\d{1,2}|one|two|three|four|five|six|a|an)\s+$`)
)

// notNames are capitalized words that follow "I'm" without being a name.
var notNames = map[string]bool{
	"looking": true, "interested": true, "hungry": true, "here": true, "just": true,
	"not": true, "trying": true, "wondering": true, "good": true, "fine": true,
	"ok": true, "okay": true, "sorry": true, "back": true, "ready": true, "done": true,
}

// cancelPhrases abandon an in-progress dialogue.
var cancelPhrases = []string{
	"cancel", "cancel that", "cancel it", "cancel this", "never mind", "nevermind",
	"forget it", "forget about it", "stop", "start over", "no thanks", "no thank you", "quit",
}

// isCancelPhrase reports whether msg asks to abandon the current dialogue.
func isCancelPhrase(msg string) bool {
	m := strings.ToLower(strings.TrimSpace(strings.TrimRight(msg, ".!? ")))
	if slices.Contains(cancelPhrases, m) {
		return true
	}
	return strings.HasPrefix(m, "never mind") || strings.HasPrefix(m, "forget it") || strings.HasPrefix(m, "cancel that")
}

// extractSlots pulls slot values out of a message with patterns and the
// catalog. asked is the slot targeted by the previous question; a short
// answer with no recognizable pattern is taken as its value.
func extractSlots(msg string, schema slot.Schema, asked string, snap *catalog.Snapshot, now time.Time) map[string]string {
	out := make(map[string]string)
	lower := " " + strings.ToLower(msg) + " "
	has := func(name string) bool {
		_, ok := schema.Lookup(name)
		return ok
	}

	// Dates are removed before phone matching so ISO dates are not read as numbers.
	rest := msg
	if has(slot.Date) {
		if d, ok := parseDate(msg, now); ok {
			out[slot.Date] = d.Format(time.DateOnly)
		}
		rest = reISODate.ReplaceAllString(rest, " ")
		rest = reSlashDate.ReplaceAllString(rest, " ")
	}
	if has(slot.Time) {
		if t, ok := parseClock(msg); ok {
			out[slot.Time] = t
		}
	}
	if has(slot.Phone) {
		for _, cand := range rePhone.FindAllString(rest, -1) {
			if p, ok := normalizePhone(cand); ok {
				out[slot.Phone] = p
				break
			}
		}
	}
	if has(slot.PartySize) {
		if n, ok := extractPartySize(msg); ok {
			out[slot.PartySize] = n
		}
	}
	if has(slot.CustomerName) {
		if m := reNameIntro.FindStringSubmatch(msg); m != nil {
			first := strings.ToLower(strings.Fields(m[1])[0])
			if !notNames[first] {
				out[slot.CustomerName] = strings.TrimSpace(m[1])
			}
		}
	}
	if has(slot.DeliveryMethod) {
		if v, ok := parseDeliveryMethod(msg); ok {
			out[slot.DeliveryMethod] = v
		}
	}
	if has(slot.Address) {
		if m := reAddress.FindStringSubmatch(msg); m != nil {
			out[slot.Address] = strings.TrimSpace(m[1])
			if _, set := out[slot.DeliveryMethod]; !set && has(slot.DeliveryMethod) {
				out[slot.DeliveryMethod] = "delivery"
			}
		}
	}
	if has(slot.Notes) {
		if m := reNotes.FindStringSubmatch(msg); m != nil {
			out[slot.Notes] = strings.TrimSpace(m[1])
		}
	}
	if has(slot.BusinessName) {
		if name, ok := extractBusiness(msg, lower, snap); ok {
			out[slot.BusinessName] = name
		}
	}
	if has(slot.Items) && snap != nil {
		if items := extractItems(lower, snap, out[slot.BusinessName]); len(items) > 0 {
			out[slot.Items] = strings.Join(items, ", ")
		}
	}

	if asked != "" && out[asked] == "" {
		if v, ok := directAnswer(msg, asked, schema); ok {
			out[asked] = v
		}
	}
	return out
}

func extractPartySize(msg string) (string, bool) {
	for _, m := range rePartyFor.FindAllStringSubmatch(msg, -1) {
		if m[2] != "" {
			continue // "for 7pm" is a time
		}
		if n, ok := parseCount(m[1]); ok {
			return strconv.Itoa(n), true
		}
	}
	if m := rePartyCount.FindStringSubmatch(msg); m != nil {
		if n, ok := parseCount(m[1]); ok {
			return strconv.Itoa(n), true
		}
	}
	return "", false
}

// extractBusiness finds a business named in the message. Known names win;
// otherwise a capitalized phrase after "at" or "from" is
// returned unresolved so the caller can say it was not found.
func extractBusiness(msg, lower string, snap *catalog.Snapshot) (string, bool) {
	if snap != nil {
		for _, b := range snap.Businesses {
			if b.Active && b.Name != "" && containsWord(lower, strings.ToLower(b.Name)) {
				return b.Name, true
			}
		}
	}
	for _, m := range reBusinessAt.FindAllStringSubmatch(msg, -1) {
		cand := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(m[1], "the "), "The "))
		if cand == "" || strings.EqualFold(cand, "I") {
			continue
		}
		if _, isDay := weekdays[strings.ToLower(cand)]; isDay {
			continue
		}
		return cand, true
	}
	return "", false
}

// extractItems returns catalog items named in the message, with any quantity
// written in front of them.
func extractItems(lower string, snap *catalog.Snapshot, businessName string) []string {
	var pool []catalog.Item
	if b, ok := catalog.Resolve(snap.Businesses, businessName); businessName != "" && ok {
		pool = snap.ItemsFor(b.ID)
	} else {
		pool = snap.Items
	}
	var out []string
	seen := make(map[string]bool)
	for _, it := range pool {
		name := strings.ToLower(it.Name)
		if name == "" || seen[name] || !it.Available {
			continue
		}
		idx := indexWord(lower, name)
		if idx < 0 {
			continue
		}
		seen[name] = true
		entry := it.Name
		if m := reQuantity.FindStringSubmatch(lower[:idx]); m != nil {
			if n, ok := parseCount(m[1]); ok && n > 1 {
				entry = strconv.Itoa(n) + " x " + it.Name
			}
		}
		out = append(out, entry)
	}
	return out
}

// directAnswer treats the whole message as the answer to the last question
// when it is short and the slot type allows free text.
func directAnswer(msg, asked string, schema slot.Schema) (string, bool) {
	def, ok := schema.Lookup(asked)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(strings.TrimRight(msg, ".!"))
	words := len(strings.Fields(v))
	switch def.Type {
	case slot.TypeInteger:
		if n, ok := parseCount(v); ok && words <= 3 {
			return strconv.Itoa(n), true
		}
	case slot.TypeText, slot.TypeList:
		if v == "" || words > 20 {
			return "", false
		}
		if asked == slot.CustomerName {
			if words > 4 || reDigits.MatchString(v) {
				return "", false
			}
			return titleCase(v), true
		}
		if asked == slot.DeliveryMethod {
			return parseDeliveryMethod(v)
		}
		return v, true
	}
	return "", false
}

func indexWord(text, term string) int {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return -1
		}
		start := idx + i
		if !isWordByte(text, start-1) && !isWordByte(text, start+len(term)) {
			return start
		}
		idx = start + 1
	}
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
