package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/slot"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

const maxListedOptions = 5

const questionSystemPrompt = "You write one short, friendly question for a local business assistant. " +
	"Ask only for the requested detail. Reply with the question only."

// bankQuestion is the fixed question for a slot, worded for the intent and
// the kind of business.
func bankQuestion(def slot.Definition, st *slot.State) string {
	kind := catalog.KindOf(st.Category)
	order := st.Intent == intent.ProductOrder
	switch def.Name {
	case slot.BusinessName:
		if order {
			return "Which store would you like to order from?"
		}
		return "Which business would you like to book with?"
	case slot.CustomerName:
		if order {
			return "What name should I put the order under?"
		}
		if kind == catalog.KindService {
			return "What name should I put the appointment under?"
		}
		return "What name should I put the reservation under?"
	case slot.PartySize:
		return "How many people will be joining?"
	case slot.Date:
		if kind == catalog.KindService {
			return "Which day would you like the appointment?"
		}
		return "What date would you like?"
	case slot.Time:
		return "What time works best for you?"
	case slot.Phone:
		return "What's the best phone number to reach you?"
	case slot.Items:
		return "What would you like to order?"
	case slot.DeliveryMethod:
		return "Would you like pickup or delivery?"
	case slot.Address:
		return "What address should we deliver to?"
	case slot.Notes:
		return "Any special requests I should pass along?"
	}
	return fmt.Sprintf("Could you tell me the %s?", strings.ReplaceAll(def.Name, "_", " "))
}

// businessOptions lists a few businesses the user could pick, preferring the
// dialogue's category.
func businessOptions(snap *catalog.Snapshot, category string) []string {
	if snap == nil {
		return nil
	}
	var pool []catalog.Business
	if category != "" {
		pool = snap.InCategory(category)
	}
	if len(pool) == 0 {
		pool = snap.Businesses
	}
	var names []string
	for _, b := range pool {
		if b.Active {
			names = append(names, b.Name)
		}
		if len(names) == maxListedOptions {
			break
		}
	}
	return names
}

// phraseQuestion asks the model to word the question for def. Any failure or
// an answer that is not a single question yields "".
func phraseQuestion(ctx context.Context, p llm.Provider, def slot.Definition, st *slot.State) string {
	var known []string
	for _, name := range st.Schema().Names() {
		if v := st.Values[name]; v != "" {
			known = append(known, name+"="+v)
		}
	}
	user := fmt.Sprintf("Detail needed: %s (%s).", def.Description, def.Name)
	if len(known) > 0 {
		user += " Known so far: " + strings.Join(known, "; ") + "."
	}
	text, err := completeText(ctx, p, questionSystemPrompt, user, 0.4)
	if err != nil {
		return ""
	}
	text = strings.Trim(strings.TrimSpace(text), `"`)
	if strings.Contains(text, "\n") || len(text) > 200 || !strings.HasSuffix(text, "?") {
		return ""
	}
	return text
}
