package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/retrieval"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

func TestRAGAgent_AnswerWithModel(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))
	m := &mockLLM{reply: jsonReply("Sakura Sushi Bar serves Tonkotsu Ramen.")}
	a := NewRAGAgent(m)

	res, err := a.Answer(context.Background(), "Do you have ramen?", snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Sakura Sushi Bar serves Tonkotsu Ramen." {
		t.Fatalf("answer = %q", res.Answer)
	}
	if len(res.Documents) != 2 || res.Confidence != retrieval.Confidence(2) {
		t.Fatalf("documents = %d, confidence = %v", len(res.Documents), res.Confidence)
	}
	if !slices.Equal(res.Sources, []string{"Sakura Sushi Bar"}) {
		t.Fatalf("sources = %v", res.Sources)
	}
	if !strings.Contains(systemOf(m.requests[0]), "Tonkotsu Ramen: Pork broth noodles") {
		t.Fatalf("snippet missing from prompt:\n%s", systemOf(m.requests[0]))
	}
}

func TestRAGAgent_NoMatchSkipsModel(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))
	m := &mockLLM{reply: jsonReply("should not be used")}
	a := NewRAGAgent(m)

	res, err := a.Answer(context.Background(), "quantum physics lectures", snap)
	if err != nil {
		t.Fatal(err)
	}
	if res.Confidence != 0.1 || res.Sources == nil || len(res.Sources) != 0 || len(res.Documents) != 0 {
		t.Fatalf("expected no-information result, got %+v", res)
	}
	if res.Answer != retrieval.NoInformationAnswer {
		t.Fatalf("answer = %q", res.Answer)
	}
	if m.callCount() != 0 {
		t.Fatal("model called without documents")
	}
}

func TestRAGAgent_SummaryWhenModelUnavailable(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))
	a := NewRAGAgent(&mockLLM{down: true})

	res, err := a.Answer(context.Background(), "ramen", snap)
	if err != nil {
		t.Fatal(err)
	}
	want := "Here's what I found:\n" +
		"- Sakura Sushi Bar. restaurant. Sushi and ramen. japanese. sushi\n" +
		"- Sakura Sushi Bar offers Tonkotsu Ramen: Pork broth noodles (13.00)"
	if res.Answer != want {
		t.Fatalf("answer = %q\nwant     %q", res.Answer, want)
	}
	if res.Confidence != retrieval.Confidence(2) {
		t.Fatalf("confidence = %v", res.Confidence)
	}
}

func TestRAGAgent_CancelledSynthesis(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	a := NewRAGAgent(&mockLLM{reply: func(llm.Request) (*llm.Response, error) {
		cancel()
		return nil, context.Canceled
	}})

	if _, err := a.Answer(ctx, "ramen", snap); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRAGAgent_NoSnapshot(t *testing.T) {
	if _, err := NewRAGAgent(nil).Answer(context.Background(), "ramen", nil); !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
}

func TestSearch_RanksExactAbovePrefix(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))

	docs := Search(snap, "organic eggs")
	if len(docs) == 0 || docs[0].Content != "Organic Eggs: Dozen free range eggs (5.50)" {
		t.Fatalf("top document = %+v", docs)
	}
	if docs[0].Score != 2 {
		t.Fatalf("score = %v", docs[0].Score)
	}

	docs = Search(snap, "pizzas")
	if len(docs) == 0 || docs[0].BusinessName != "Luigi's Trattoria" || docs[0].Score != prefixMatchScore {
		t.Fatalf("prefix match = %+v", docs)
	}
}

func TestSearch_SkipsInactiveAndUnavailable(t *testing.T) {
	snap := &catalog.Snapshot{
		Businesses: []catalog.Business{
			{ID: "open", Name: "Corner Deli", Category: "restaurant", Active: true},
			{ID: "shut", Name: "Bagel Barn", Category: "restaurant", Active: false},
		},
		Items: []catalog.Item{
			{BusinessID: "open", Name: "Bagel Sandwich", Available: false},
			{BusinessID: "shut", Name: "Everything Bagel", Available: true},
		},
	}
	if docs := Search(snap, "bagel"); len(docs) != 0 {
		t.Fatalf("expected nothing, got %+v", docs)
	}
}

func TestSearch_CapsAndStopwords(t *testing.T) {
	snap := testSnapshot(t, newTestStore(t))

	docs := Search(snap, "pizza tiramisu ramen haircut eggs sourdough organic")
	if len(docs) != retrieval.MaxDocuments {
		t.Fatalf("expected %d documents, got %d", retrieval.MaxDocuments, len(docs))
	}
	for i := 1; i < len(docs); i++ {
		if docs[i].Score > docs[i-1].Score {
			t.Fatalf("documents not ordered by score: %+v", docs)
		}
	}

	if docs := Search(snap, "what do you have?"); docs != nil {
		t.Fatalf("stopword-only query matched %+v", docs)
	}
}
