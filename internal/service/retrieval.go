package service

import (
	"bytes"
	"cmp"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/template"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/catalog"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/retrieval"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/port/llm"
)

//go:embed templates/rag_system.tmpl
var ragSystemTmpl string

var ragTmpl = template.Must(template.New("rag_system").Parse(ragSystemTmpl))

// queryStopwords carry no meaning for catalog search.
var queryStopwords = map[string]bool{
	"what": true, "which": true, "who": true, "how": true, "do": true, "does": true,
	"you": true, "your": true, "is": true, "are": true, "have": true, "has": true,
	"any": true, "there": true, "can": true, "i": true, "me": true, "about": true,
	"tell": true, "show": true, "list": true, "get": true, "some": true, "with": true,
	"much": true, "please": true, "we": true, "it": true, "they": true, "this": true,
	"that": true, "be": true, "or": true, "near": true, "want": true, "like": true,
}

const (
	exactMatchScore  = 1.0
	prefixMatchScore = 0.5
	minPrefixLen     = 4
	// minPrefixRatio keeps short stems from matching long unrelated words.
	minPrefixRatio = 0.6
)

// ErrNoCatalog is returned when retrieval runs without a catalog snapshot.
var ErrNoCatalog = errors.New("catalog snapshot unavailable")

// RAGAgent answers questions from catalog item and business profile text.
type RAGAgent struct {
	llm llm.Provider
}

// NewRAGAgent creates a retrieval agent. Without a usable model answers are
// templated from the retrieved snippets.
func NewRAGAgent(p llm.Provider) *RAGAgent {
	return &RAGAgent{llm: p}
}

// Answer retrieves snippets for the question and synthesizes an answer.
// Nothing found yields the fixed no-information result without a model call.
func (a *RAGAgent) Answer(ctx context.Context, question string, snap *catalog.Snapshot) (retrieval.Result, error) {
	if snap == nil {
		return retrieval.Result{}, ErrNoCatalog
	}
	docs := Search(snap, question)
	if len(docs) == 0 {
		return retrieval.NoInformation(), nil
	}

	answer, err := a.synthesize(ctx, question, docs)
	if err != nil {
		if ctx.Err() != nil {
			return retrieval.Result{}, ctx.Err()
		}
		slog.DebugContext(ctx, "answer synthesis unavailable, using summary", "error", err)
		answer = SummarizeDocuments(docs)
	}
	return retrieval.Result{
		Documents:  docs,
		Answer:     answer,
		Confidence: retrieval.Confidence(len(docs)),
		Sources:    retrieval.Sources(docs),
	}, nil
}

// SelfTest checks that the model answers a trivial grounded question.
func (a *RAGAgent) SelfTest(ctx context.Context) error {
	_, err := a.synthesize(ctx, "What is open?", []retrieval.Document{
		{BusinessName: "Test Cafe", Corpus: retrieval.CorpusBusiness, Content: "Test Cafe. cafe. Hours: 8-17"},
	})
	return err
}

func (a *RAGAgent) synthesize(ctx context.Context, question string, docs []retrieval.Document) (string, error) {
	var buf bytes.Buffer
	if err := ragTmpl.Execute(&buf, struct{ Documents []retrieval.Document }{docs}); err != nil {
		return "", fmt.Errorf("render rag prompt: %w", err)
	}
	return completeText(ctx, a.llm, buf.String(), sanitizePromptInput(question), 0.2)
}

// Search scores item and business text against the query by term overlap,
// counting prefix matches at half weight. Results are de-duplicated by
// business and content, ordered by score and capped.
func Search(snap *catalog.Snapshot, query string) []retrieval.Document {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	active := make(map[string]catalog.Business, len(snap.Businesses))
	for _, b := range snap.Businesses {
		if b.Active {
			active[b.ID] = b
		}
	}

	var docs []retrieval.Document
	for _, it := range snap.Items {
		b, ok := active[it.BusinessID]
		if !ok || !it.Available {
			continue
		}
		content := it.Text()
		if it.Price > 0 {
			content += fmt.Sprintf(" (%.2f)", it.Price)
		}
		if score := scoreText(terms, content+" "+it.Category); score > 0 {
			docs = append(docs, retrieval.Document{
				BusinessID: b.ID, BusinessName: b.Name,
				Corpus: retrieval.CorpusItem, Content: content, Score: score,
			})
		}
	}
	for _, b := range active {
		if score := scoreText(terms, b.Profile()); score > 0 {
			docs = append(docs, retrieval.Document{
				BusinessID: b.ID, BusinessName: b.Name,
				Corpus: retrieval.CorpusBusiness, Content: b.Profile(), Score: score,
			})
		}
	}

	slices.SortStableFunc(docs, func(x, y retrieval.Document) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.BusinessName, y.BusinessName); c != 0 {
			return c
		}
		return cmp.Compare(x.Content, y.Content)
	})

	seen := make(map[string]bool)
	out := make([]retrieval.Document, 0, retrieval.MaxDocuments)
	for _, d := range docs {
		key := d.BusinessID + "\x00" + d.Content
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
		if len(out) == retrieval.MaxDocuments {
			break
		}
	}
	return out
}

// SummarizeDocuments is the templated answer used when synthesis is unavailable.
func SummarizeDocuments(docs []retrieval.Document) string {
	var b strings.Builder
	b.WriteString("Here's what I found:")
	for _, d := range docs {
		content := d.Content
		if d.Corpus == retrieval.CorpusItem {
			content = d.BusinessName + " offers " + content
		}
		b.WriteString("\n- ")
		b.WriteString(truncate(content, 160))
	}
	return b.String()
}

func queryTerms(q string) []string {
	var out []string
	for _, t := range catalog.Tokens(q) {
		if !queryStopwords[t] && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func scoreText(terms []string, text string) float64 {
	tokens := catalog.Tokens(text)
	score := 0.0
	for _, term := range terms {
		best := 0.0
		for _, tok := range tokens {
			switch {
			case tok == term:
				best = exactMatchScore
			case prefixMatch(term, tok):
				best = max(best, prefixMatchScore)
			}
			if best == exactMatchScore {
				break
			}
		}
		score += best
	}
	return score
}

func prefixMatch(a, b string) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < minPrefixLen || float64(len(short))/float64(len(long)) < minPrefixRatio {
		return false
	}
	return strings.HasPrefix(long, short)
}
