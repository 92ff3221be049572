// Package retrieval defines documents and answers of the retrieval agent.
package retrieval

// Corpus identifies where a document was found.
type Corpus string

const (
	CorpusItem     Corpus = "item"
	CorpusBusiness Corpus = "business"
)

// MaxDocuments caps the documents passed to answer synthesis.
const MaxDocuments = 5

// NoInformationConfidence is the confidence of the no-match answer.
const NoInformationConfidence = 0.1

// NoInformationAnswer is returned when nothing in the catalog matches.
const NoInformationAnswer = "I couldn't find any information about that in our listings. Could you rephrase, or ask about a specific business?"

// Document is one retrieved snippet.
type Document struct {
	BusinessID   string  `json:"business_id"`
	BusinessName string  `json:"business_name"`
	Corpus       Corpus  `json:"corpus"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Result is the outcome of answering one question.
type Result struct {
	Documents  []Document `json:"documents"`
	Answer     string     `json:"answer"`
	Confidence float64    `json:"confidence"`
	Sources    []string   `json:"sources"`
}

// Confidence returns the confidence for n retrieved documents.
func Confidence(n int) float64 {
	if n <= 0 {
		return NoInformationConfidence
	}
	return min(0.9, 0.2*float64(n))
}

// Sources returns the distinct business names of docs in first-seen order.
func Sources(docs []Document) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, d := range docs {
		if d.BusinessName != "" && !seen[d.BusinessName] {
			seen[d.BusinessName] = true
			out = append(out, d.BusinessName)
		}
	}
	return out
}

// NoInformation returns the fixed no-match result.
func NoInformation() Result {
	return Result{
		Documents:  []Document{},
		Answer:     NoInformationAnswer,
		Confidence: NoInformationConfidence,
		Sources:    []string{},
	}
}

// Apology is the canned result used when the retrieval agent cannot run.
func Apology() Result {
	return Result{
		Documents:  []Document{},
		Answer:     "I'm sorry, I can't look that up right now. Please try again shortly.",
		Confidence: 0,
		Sources:    []string{},
	}
}
