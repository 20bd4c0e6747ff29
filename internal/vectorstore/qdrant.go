package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/qanoonhub/lawrag/internal/corpus"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements Store using Qdrant.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStore creates a new Qdrant vector store client for one collection.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(url, collection string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// CreateCollection creates the collection with cosine distance.
func (s *QdrantStore) CreateCollection(ctx context.Context, dimension int) error {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection %q: %v", ErrStoreUnavailable, s.collection, err)
	}

	return nil
}

// CollectionExists checks whether the collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check collection existence: %v", ErrStoreUnavailable, err)
	}

	return exists, nil
}

// Upsert inserts or overwrites points by id. Chunk ids are deterministic, so
// re-ingestion of unchanged input overwrites in place.
func (s *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: encodePayload(point.Payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upsert points: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Search performs a filtered nearest-neighbor query.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, category string, limit int) ([]SearchResult, error) {
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrCollectionMissing, s.collection)
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if category != "" {
		// Set membership on the multi-valued categories field; a law may
		// carry several categories.
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("categories", category),
			},
		}
	}

	response, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to search: %v", ErrStoreUnavailable, err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		results = append(results, SearchResult{
			ID:      point.Id.GetUuid(),
			Score:   point.Score,
			Payload: decodePayload(point.Payload),
		})
	}

	return results, nil
}

// encodePayload converts a chunk payload into Qdrant values.
func encodePayload(p corpus.ChunkPayload) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"law_id":           qdrant.NewValueString(p.LawID),
		"law_name":         qdrant.NewValueString(p.LawName),
		"law_number":       qdrant.NewValueString(p.LawNumber),
		"law_year":         qdrant.NewValueString(p.LawYear),
		"law_date":         qdrant.NewValueString(p.LawDate),
		"law_type":         qdrant.NewValueString(p.LawType),
		"law_address":      qdrant.NewValueString(p.LawAddress),
		"law_status":       qdrant.NewValueString(p.LawStatus),
		"categories":       newStringListValue(p.Categories),
		"keywords":         newStringListValue(p.Keywords),
		"sub_keywords":     newStringListValue(p.SubKeywords),
		"article_number":   qdrant.NewValueString(p.ArticleNumber),
		"article_title":    qdrant.NewValueString(p.ArticleTitle),
		"status":           qdrant.NewValueString(p.Status),
		"working_date":     qdrant.NewValueString(p.WorkingDate),
		"canceling_date":   qdrant.NewValueString(p.CancelingDate),
		"article_group_id": qdrant.NewValueString(p.GroupKey),
		"chunk_index":      qdrant.NewValueInt(int64(p.ChunkIndex)),
		"chunk_total":      qdrant.NewValueInt(int64(p.ChunkTotal)),
		"text_content":     qdrant.NewValueString(p.TextContent),
	}

	for k, v := range p.Extra {
		if _, taken := payload[k]; !taken {
			payload[k] = qdrant.NewValueString(v)
		}
	}

	return payload
}

// decodePayload converts Qdrant values back into a chunk payload. Unknown
// string fields land in Extra so older and newer payloads round-trip.
func decodePayload(values map[string]*qdrant.Value) corpus.ChunkPayload {
	p := corpus.ChunkPayload{
		LawID:         values["law_id"].GetStringValue(),
		LawName:       values["law_name"].GetStringValue(),
		LawNumber:     values["law_number"].GetStringValue(),
		LawYear:       values["law_year"].GetStringValue(),
		LawDate:       values["law_date"].GetStringValue(),
		LawType:       values["law_type"].GetStringValue(),
		LawAddress:    values["law_address"].GetStringValue(),
		LawStatus:     values["law_status"].GetStringValue(),
		Categories:    stringListValue(values["categories"]),
		Keywords:      stringListValue(values["keywords"]),
		SubKeywords:   stringListValue(values["sub_keywords"]),
		ArticleNumber: values["article_number"].GetStringValue(),
		ArticleTitle:  values["article_title"].GetStringValue(),
		Status:        values["status"].GetStringValue(),
		WorkingDate:   values["working_date"].GetStringValue(),
		CancelingDate: values["canceling_date"].GetStringValue(),
		GroupKey:      values["article_group_id"].GetStringValue(),
		ChunkIndex:    int(values["chunk_index"].GetIntegerValue()),
		ChunkTotal:    int(values["chunk_total"].GetIntegerValue()),
		TextContent:   values["text_content"].GetStringValue(),
	}

	for k, v := range values {
		if knownPayloadFields[k] {
			continue
		}
		if s := v.GetStringValue(); s != "" {
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = s
		}
	}

	return p
}

var knownPayloadFields = map[string]bool{
	"law_id": true, "law_name": true, "law_number": true, "law_year": true,
	"law_date": true, "law_type": true, "law_address": true, "law_status": true,
	"categories": true, "keywords": true, "sub_keywords": true,
	"article_number": true, "article_title": true, "status": true,
	"working_date": true, "canceling_date": true, "article_group_id": true,
	"chunk_index": true, "chunk_total": true, "text_content": true,
}

func newStringListValue(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, s := range items {
		values[i] = qdrant.NewValueString(s)
	}
	return &qdrant.Value{
		Kind: &qdrant.Value_ListValue{
			ListValue: &qdrant.ListValue{Values: values},
		},
	}
}

func stringListValue(v *qdrant.Value) []string {
	list := v.GetListValue()
	if list == nil || len(list.Values) == 0 {
		return nil
	}
	out := make([]string, 0, len(list.Values))
	for _, item := range list.Values {
		out = append(out, item.GetStringValue())
	}
	return out
}

// Ensure QdrantStore implements Store
var _ Store = (*QdrantStore)(nil)
