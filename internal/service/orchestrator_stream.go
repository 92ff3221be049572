package service

import (
	"context"
	"strings"

	"github.com/DevbyNaveen/X-Seven-sub001/internal/domain/conversation"
	"github.com/DevbyNaveen/X-Seven-sub001/internal/resilience"
)

// Stream handles the message like HandleMessage and delivers the reply in
// word chunks with the configured delay between them. Delivery stops at the
// first emit error or when ctx ends; tools are never re-run and committed
// writes stay committed. The full reply is returned either way.
func (o *Orchestrator) Stream(ctx context.Context, req conversation.Request, emit func(conversation.Chunk) error) (conversation.Reply, error) {
	reply, err := o.HandleMessage(ctx, req)
	if err != nil {
		return reply, err
	}
	chunks := chunkWords(reply.Message, o.stream.ChunkWords)
	for i, text := range chunks {
		if i > 0 && o.stream.ChunkDelay > 0 {
			if err := resilience.Sleep(ctx, o.stream.ChunkDelay); err != nil {
				return reply, err
			}
		}
		if err := ctx.Err(); err != nil {
			return reply, err
		}
		if err := emit(conversation.Chunk{Index: i, Text: text, Final: i == len(chunks)-1}); err != nil {
			return reply, err
		}
	}
	return reply, nil
}

// chunkWords splits text into pieces of n words, keeping the whitespace that
// follows each word so the chunks concatenate back to the original.
func chunkWords(text string, n int) []string {
	if n < 1 {
		n = 1
	}
	var (
		chunks []string
		b      strings.Builder
		words  int
		inWord bool
	)
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && !inWord {
			if words == n {
				chunks = append(chunks, b.String())
				b.Reset()
				words = 0
			}
			words++
		}
		inWord = !isSpace
		b.WriteRune(r)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
