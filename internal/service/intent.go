package service

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/intent"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

//go:embed templates/intent_system.tmpl
var intentSystemTmpl string

var intentTmpl = template.Must(template.New("intent_system").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(intentSystemTmpl))

// keywordMaxConfidence caps the confidence of keyword classification.
const keywordMaxConfidence = 0.7

var (
	bookingTerms = []string{"book", "booking", "reserve", "reservation", "table", "appointment", "schedule", "seat", "slot", "session"}
	orderTerms   = []string{"order", "buy", "purchase", "deliver", "delivery", "pickup", "pick up", "cart", "takeaway", "take out", "ship"}
	infoTerms    = []string{"what", "when", "where", "which", "how", "hours", "open", "close", "price", "cost", "menu", "available", "recommend", "tell me", "info", "do you", "does", "?"}
	generalTerms = []string{"hi", "hello", "hey", "thanks", "thank you", "good morning", "good evening", "bye"}

	// categoryTerms extend the vocabularies with what people say about each category.
	categoryTerms = map[string][]string{
		"restaurant": {"dinner", "lunch", "brunch", "eat", "food", "restaurant", "table"},
		"cafe":       {"coffee", "cafe", "latte", "breakfast"},
		"bar":        {"drinks", "cocktail", "bar"},
		"bakery":     {"cake", "bread", "pastry", "croissant", "bakery"},
		"salon":      {"haircut", "hair", "nails", "manicure", "pedicure", "salon", "color"},
		"spa":        {"massage", "facial", "spa", "sauna"},
		"clinic":     {"doctor", "checkup", "consultation", "clinic"},
		"barber":     {"shave", "trim", "beard", "barber"},
		"fitness":    {"gym", "yoga", "class", "training", "workout", "pilates"},
		"grocery":    {"groceries", "milk", "eggs", "vegetables", "grocery"},
		"pharmacy":   {"medicine", "prescription", "pharmacy"},
		"florist":    {"flowers", "bouquet", "roses", "florist"},
		"retail":     {"shop", "store", "buy"},
	}
)

// IntentAgent classifies a message into the intent taxonomy.
type IntentAgent struct {
	llm llm.Provider
}

// NewIntentAgent creates an intent classifier. A nil or unconfigured provider
// leaves only the keyword path.
func NewIntentAgent(p llm.Provider) *IntentAgent {
	return &IntentAgent{llm: p}
}

type intentPromptData struct {
	Categories  []string
	Businesses  []string
	RecentTurns []string
}

type intentResponse struct {
	Intent     string         `json:"intent"`
	Category   string         `json:"category"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Reasoning  string         `json:"reasoning"`
}

// Classify asks the language model for the intent. It returns an error when
// the model is unavailable or its answer does not follow the contract.
func (a *IntentAgent) Classify(ctx context.Context, msg string, ic intent.Context) (intent.Result, error) {
	var buf bytes.Buffer
	if err := intentTmpl.Execute(&buf, intentPromptData{
		Categories:  ic.Categories,
		Businesses:  ic.Businesses,
		RecentTurns: ic.RecentTurns,
	}); err != nil {
		return intent.Result{}, fmt.Errorf("render intent prompt: %w", err)
	}

	resp, err := completeJSON[intentResponse](ctx, a.llm, buf.String(), sanitizePromptInput(msg))
	if err != nil {
		return intent.Result{}, fmt.Errorf("classify intent: %w", err)
	}
	if _, ok := intent.ParseTag(resp.Intent); !ok {
		return intent.Result{}, fmt.Errorf("classify intent: unknown intent %q", resp.Intent)
	}

	r := intent.Result{
		Intent:     intent.Tag(resp.Intent),
		Category:   resp.Category,
		Confidence: resp.Confidence,
		Reasoning:  resp.Reasoning,
	}
	if len(resp.Entities) > 0 {
		r.Entities = make(map[string]string, len(resp.Entities))
		for k, v := range resp.Entities {
			if v != nil {
				r.Entities[k] = fmt.Sprint(v)
			}
		}
	}
	r.Normalize()
	return r, nil
}

// ClassifyKeywords scores the message against booking, order and information
// vocabularies extended with category terms. It never fails and never
// reports more than keywordMaxConfidence.
func (a *IntentAgent) ClassifyKeywords(msg string, ic intent.Context) intent.Result {
	text := " " + strings.ToLower(msg) + " "

	booking := countTerms(text, bookingTerms)
	order := countTerms(text, orderTerms)
	info := countTerms(text, infoTerms)

	category := detectCategory(text, ic.Categories)
	if category != "" {
		switch catalog.KindOf(category) {
		case catalog.KindRetail:
			if order > 0 || booking == 0 {
				order++
			}
		default:
			if booking > 0 || order == 0 {
				booking++
			}
		}
	}

	r := intent.Result{Intent: intent.General, Category: category, Entities: map[string]string{}}
	best := 0
	switch {
	case booking > 0 && booking >= order && booking >= info:
		r.Intent, best = intent.ServiceBooking, booking
	case order > 0 && order >= info:
		r.Intent, best = intent.ProductOrder, order
	case info > 0:
		r.Intent, best = intent.Information, info
	}

	switch {
	case best > 0:
		r.Confidence = min(keywordMaxConfidence, 0.4+0.1*float64(best))
		r.Reasoning = fmt.Sprintf("keyword match (%d terms)", best)
	case countTerms(text, generalTerms) > 0:
		r.Confidence = 0.6
		r.Reasoning = "greeting or small talk"
	default:
		r.Confidence = 0.4
		r.Reasoning = "no keywords matched"
	}

	lower := strings.ToLower(msg)
	for _, name := range ic.Businesses {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			r.Entities["business_name"] = name
			break
		}
	}
	return r
}

// SelfTest checks that the model answers a trivial classification.
func (a *IntentAgent) SelfTest(ctx context.Context) error {
	r, err := a.Classify(ctx, "hello", intent.Context{})
	if err != nil {
		return err
	}
	if r.Intent == "" {
		return errors.New("empty intent")
	}
	return nil
}

// countTerms counts vocabulary hits, matching single words on word boundaries.
func countTerms(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if t == "?" {
			if strings.Contains(text, "?") {
				n++
			}
			continue
		}
		if containsWord(text, t) {
			n++
		}
	}
	return n
}

func containsWord(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		if !isWordByte(text, start-1) && !isWordByte(text, end) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// detectCategory returns the category whose terms best match the text,
// preferring the live categories when they are known.
func detectCategory(text string, live []string) string {
	candidates := live
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(categoryTerms))
		for c := range categoryTerms {
			candidates = append(candidates, c)
		}
	}
	best, bestScore := "", 0
	for _, c := range candidates {
		score := countTerms(text, categoryTerms[strings.ToLower(c)])
		if score > bestScore || (score == bestScore && score > 0 && c < best) {
			best, bestScore = c, score
		}
	}
	return strings.ToLower(best)
}
