package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qanoonhub/lawrag/internal/corpus"
)

// ErrMissingGroupKey is returned when a law record carries no identifier and
// its article has neither a number nor a title, so no stable group key can be
// formed. This is a hard error for newly written data; only reads of stores
// written by older tooling fall back to per-chunk singleton groups.
var ErrMissingGroupKey = errors.New("article has no usable group key")

// chunkNamespace is the fixed UUID namespace for deterministic chunk ids.
var chunkNamespace = uuid.MustParse("5c1a9f12-3e4b-46c7-9d20-8b1f6a2d7e03")

// Chunk is one embeddable, independently retrievable slice of an article plus
// its denormalized metadata. Created once at ingestion and never mutated;
// re-running assembly over unchanged input produces identical ids, so store
// upserts overwrite rather than duplicate.
type Chunk struct {
	ID         string
	GroupKey   string
	Index      int
	Total      int
	VectorText string
	Payload    corpus.ChunkPayload
}

// Assembler combines law and article metadata with the effective article text
// and split windows into emittable chunks.
type Assembler struct {
	splitter Splitter
}

// NewAssembler creates an Assembler using the given splitter configuration.
func NewAssembler(splitter Splitter) *Assembler {
	return &Assembler{splitter: splitter}
}

// Assemble builds the chunks for one article of a law. An article whose
// effective text is empty contributes no chunks and no error.
func (a *Assembler) Assemble(law corpus.Law, article corpus.Article) ([]Chunk, error) {
	status, text := corpus.EffectiveText(article)
	if text == "" {
		return nil, nil
	}

	articleKey := article.Number.String()
	if articleKey == "" {
		articleKey = strings.TrimSpace(article.Title)
	}
	if law.ID.String() == "" && articleKey == "" {
		return nil, ErrMissingGroupKey
	}
	groupKey := law.ID.String() + "_" + articleKey

	windows := a.splitter.Split(text)
	chunks := make([]Chunk, 0, len(windows))

	for i, window := range windows {
		payload := corpus.ChunkPayload{
			LawID:       law.ID.String(),
			LawName:     law.Name,
			LawNumber:   law.Number.String(),
			LawYear:     law.Year.String(),
			LawDate:     law.Date,
			LawType:     law.Type,
			LawAddress:  law.Address,
			LawStatus:   law.Status,
			Categories:  law.Categories,
			Keywords:    law.Keywords,
			SubKeywords: law.SubKeywords,

			ArticleNumber: article.Number.String(),
			ArticleTitle:  article.Title,
			Status:        status,
			WorkingDate:   article.WorkingDate,
			CancelingDate: article.CancelingDate,

			GroupKey:    groupKey,
			ChunkIndex:  i,
			ChunkTotal:  len(windows),
			TextContent: window,
		}

		chunks = append(chunks, Chunk{
			ID:         chunkID(law.ID.String(), articleKey, i),
			GroupKey:   groupKey,
			Index:      i,
			Total:      len(windows),
			VectorText: vectorText(law, article.Title, status, window),
			Payload:    payload,
		})
	}

	return chunks, nil
}

// chunkID derives a stable UUID from the law id, article key and window index.
func chunkID(lawID, articleKey string, index int) string {
	key := fmt.Sprintf("%s|%s|%d", lawID, articleKey, index)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// vectorText builds the embeddable text for one window. The full metadata
// header is repeated on every sub-chunk so the embedding model always sees the
// window with its law and article context, not as a bare content fragment.
func vectorText(law corpus.Law, articleTitle, status, window string) string {
	var sb strings.Builder
	sb.WriteString("Law: ")
	sb.WriteString(law.Name)
	sb.WriteString("\nAddress: ")
	sb.WriteString(law.Address)
	sb.WriteString("\nArticle: ")
	sb.WriteString(articleTitle)
	sb.WriteString(" (")
	sb.WriteString(status)
	sb.WriteString(")\nCategories: ")
	sb.WriteString(strings.Join(law.Categories, ", "))
	sb.WriteString("\n")
	sb.WriteString(window)
	return sb.String()
}
