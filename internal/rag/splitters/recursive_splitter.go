package splitters

import (
	"strings"

	"pko/internal/rag/interfaces"
	"pko/internal/rag/schema"
)

// separators is the boundary preference order: paragraph breaks, then line
// breaks, then spaces, then raw runes as the last resort.
var separators = []string{"\n\n", "\n", " ", ""}

// RecursiveSplitter splits documents into overlapping, size-bounded chunks,
// preferring the largest semantic boundary that keeps each piece within the
// chunk size. Sizes are measured in runes.
type RecursiveSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

// NewRecursiveSplitter creates a new RecursiveSplitter.
func NewRecursiveSplitter(chunkSize, chunkOverlap int) *RecursiveSplitter {
	return &RecursiveSplitter{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split splits the documents into chunks. Chunk indices are contiguous from
// 0 within each document, in document order. Documents containing only
// whitespace produce no chunks, and merged chunks that hold nothing but
// stranded separator characters are dropped. The input documents are not
// mutated.
func (s *RecursiveSplitter) Split(docs []*schema.Document) []*schema.Chunk {
	var chunks []*schema.Chunk
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		idx := 0
		for _, text := range s.splitText(doc.Text, separators) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			meta := doc.Metadata
			meta.ChunkIndex = idx
			idx++
			chunks = append(chunks, &schema.Chunk{Text: text, Metadata: meta})
		}
	}
	return chunks
}

// splitText splits one text using the first applicable separator, recursing
// into finer separators for pieces that are still too large, then merges
// adjacent pieces back into chunks of at most ChunkSize with ChunkOverlap
// runes carried across each cut.
func (s *RecursiveSplitter) splitText(text string, seps []string) []string {
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := ""
	rest := []string{}
	for i, candidate := range seps {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}
	if sep == "" {
		return s.splitBySize(text)
	}

	var pieces []string
	for _, part := range strings.SplitAfter(text, sep) {
		if part == "" {
			continue
		}
		if runeLen(part) > s.ChunkSize {
			pieces = append(pieces, s.splitText(part, rest)...)
		} else {
			pieces = append(pieces, part)
		}
	}
	return s.merge(pieces)
}

// merge greedily packs pieces into chunks bounded by ChunkSize. When a
// chunk is emitted, trailing pieces totalling at most ChunkOverlap runes
// are retained as the start of the next chunk.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	curLen := 0

	for _, piece := range pieces {
		plen := runeLen(piece)
		if curLen+plen > s.ChunkSize && curLen > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for curLen > s.ChunkOverlap || (curLen+plen > s.ChunkSize && curLen > 0) {
				curLen -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		curLen += plen
	}
	if curLen > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// splitBySize hard-splits text into rune windows of ChunkSize advancing by
// ChunkSize-ChunkOverlap, the same stepping the token-based splitters use.
func (s *RecursiveSplitter) splitBySize(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// compile-time check to ensure RecursiveSplitter implements the Splitter interface
var _ interfaces.Splitter = (*RecursiveSplitter)(nil)
