package weaviate

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"folio/backend/internal/engine"
	"folio/backend/internal/ingest"
)

// hashPageLimit bounds one hash listing; a single book stays well under it.
const hashPageLimit = 10000

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

func (s *Store) StoreChunks(ctx context.Context, chunks []ingest.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(chunks))
	for i, c := range chunks {
		objects[i] = &models.Object{
			Class: ClassName,
			Properties: map[string]interface{}{
				"content":       c.Content,
				"bookId":        c.BookID,
				"kind":          string(c.Kind),
				"contentHash":   c.ContentHash,
				"chapterNumber": c.ChapterNumber,
				"chapterTitle":  c.ChapterTitle,
				"sectionTitle":  c.SectionTitle,
				"pageStart":     c.PageStart,
				"pageEnd":       c.PageEnd,
				"figureId":      c.FigureID,
				"segmentIndex":  c.SegmentIndex,
				"segmentTotal":  c.SegmentTotal,
				"segmentOffset": c.SegmentOffset,
			},
			Vector: c.Embedding,
		}
	}

	res, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range res {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch insert rejected: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) ExistingHashes(ctx context.Context, bookID string) (map[string]bool, error) {
	where := filters.Where().
		WithPath([]string{"bookId"}).
		WithOperator(filters.Equal).
		WithValueString(bookID)

	res, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithWhere(where).
		WithLimit(hashPageLimit).
		WithFields(graphql.Field{Name: "contentHash"}).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	return parseHashes(res.Data), nil
}

func (s *Store) DeleteByBook(ctx context.Context, bookID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"bookId"}).
			WithOperator(filters.Equal).
			WithValueString(bookID)).
		Do(ctx)
	return err
}

func (s *Store) Search(ctx context.Context, q engine.SearchQuery) ([]engine.SearchHit, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(q.Vector)
	if q.MinSimilarity > 0 {
		nearVector = nearVector.WithCertainty(float32(q.MinSimilarity))
	}

	where := filters.Where().
		WithPath([]string{"bookId"}).
		WithOperator(filters.Equal).
		WithValueString(q.BookID)
	if len(q.Kinds) > 0 {
		operands := []*filters.WhereBuilder{where}
		kindOr := make([]*filters.WhereBuilder, len(q.Kinds))
		for i, kind := range q.Kinds {
			kindOr[i] = filters.Where().
				WithPath([]string{"kind"}).
				WithOperator(filters.Equal).
				WithValueString(kind)
		}
		operands = append(operands, filters.Where().
			WithOperator(filters.Or).
			WithOperands(kindOr))
		where = filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "kind"},
		{Name: "chapterNumber"},
		{Name: "chapterTitle"},
		{Name: "sectionTitle"},
		{Name: "pageStart"},
		{Name: "pageEnd"},
		{Name: "figureId"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(q.Limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %v", res.Errors)
	}

	return parseHits(res.Data), nil
}

// Count reports how many chunks a book has, or all chunks when bookID is
// empty.
func (s *Store) Count(ctx context.Context, bookID string) (int, error) {
	agg := s.client.GraphQL().Aggregate().
		WithClassName(ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if bookID != "" {
		agg = agg.WithWhere(filters.Where().
			WithPath([]string{"bookId"}).
			WithOperator(filters.Equal).
			WithValueString(bookID))
	}

	res, err := agg.Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("graphql error: %v", res.Errors)
	}

	if data, ok := res.Data["Aggregate"].(map[string]interface{}); ok {
		if rows, ok := data[ClassName].([]interface{}); ok && len(rows) > 0 {
			if row, ok := rows[0].(map[string]interface{}); ok {
				if meta, ok := row["meta"].(map[string]interface{}); ok {
					if count, ok := meta["count"].(float64); ok {
						return int(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

func parseHashes(data map[string]models.JSONObject) map[string]bool {
	hashes := map[string]bool{}
	if get, ok := data["Get"].(map[string]interface{}); ok {
		if rows, ok := get[ClassName].([]interface{}); ok {
			for _, r := range rows {
				if props, ok := r.(map[string]interface{}); ok {
					if h, ok := props["contentHash"].(string); ok && h != "" {
						hashes[h] = true
					}
				}
			}
		}
	}
	return hashes
}

func parseHits(data map[string]models.JSONObject) []engine.SearchHit {
	var hits []engine.SearchHit
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	rows, ok := get[ClassName].([]interface{})
	if !ok {
		return nil
	}

	for _, r := range rows {
		props, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		hit := engine.SearchHit{}
		if v, ok := props["content"].(string); ok {
			hit.Content = v
		}
		if v, ok := props["kind"].(string); ok {
			hit.Kind = v
		}
		if v, ok := props["chapterNumber"].(float64); ok {
			hit.ChapterNumber = int(v)
		}
		if v, ok := props["chapterTitle"].(string); ok {
			hit.ChapterTitle = v
		}
		if v, ok := props["sectionTitle"].(string); ok {
			hit.SectionTitle = v
		}
		if v, ok := props["pageStart"].(float64); ok {
			hit.PageStart = int(v)
		}
		if v, ok := props["pageEnd"].(float64); ok {
			hit.PageEnd = int(v)
		}
		if v, ok := props["figureId"].(string); ok {
			hit.FigureID = v
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Similarity = certainty
			}
		}
		hits = append(hits, hit)
	}
	return hits
}
