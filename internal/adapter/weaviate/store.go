package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"dochat/internal/pipeline"
	"dochat/internal/vector"
)

// Store keeps each collection in its own Weaviate class, named
// deterministically from the collection id. Chunk object ids are
// content-derived, so re-ingesting a document upserts in place.
type Store struct {
	client *weaviate.Client
	schema vector.SchemaClient
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client, schema: vector.NewWeaviateClientAdapter(client)}
}

func (s *Store) Upsert(ctx context.Context, collection string, chunks []pipeline.Chunk) error {
	className := vector.ClassName(collection)
	if err := vector.EnsureClass(ctx, s.schema, className); err != nil {
		return fmt.Errorf("ensure class %s: %w", className, err)
	}

	batcher := s.client.Batch().ObjectsBatcher()
	for _, c := range chunks {
		batcher = batcher.WithObjects(&models.Object{
			Class: className,
			ID:    strfmt.UUID(c.ID),
			Properties: map[string]interface{}{
				"content":    c.Content,
				"source":     c.Source,
				"docId":      c.DocumentID,
				"chunkIndex": c.Index,
			},
			Vector: models.C11yVector(c.Vector),
		})
	}

	res, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert into %s: %w", className, err)
	}
	for _, obj := range res {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert into %s: %s", className, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, k int) ([]pipeline.Candidate, error) {
	className := vector.ClassName(collection)

	// A collection that has never been written to is not an error; the
	// router treats an empty candidate set as a signal.
	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return nil, fmt.Errorf("check class %s: %w", className, err)
	}
	if !exists {
		return nil, nil
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(nearVector).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", className, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("search %s: graphql error: %v", className, res.Errors[0].Message)
	}

	var candidates []pipeline.Candidate
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	hits, ok := data[className].([]interface{})
	if !ok {
		return nil, nil
	}

	for _, h := range hits {
		props, ok := h.(map[string]interface{})
		if !ok {
			continue
		}

		var c pipeline.Candidate
		if content, ok := props["content"].(string); ok {
			c.Content = content
		}
		if source, ok := props["source"].(string); ok {
			c.Source = source
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				c.Score = float32(certainty)
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// Drop removes the collection's class wholesale. Only the bulk rebuild
// path calls this.
func (s *Store) Drop(ctx context.Context, collection string) error {
	className := vector.ClassName(collection)
	exists, err := s.schema.ClassExists(ctx, className)
	if err != nil {
		return fmt.Errorf("check class %s: %w", className, err)
	}
	if !exists {
		return nil
	}
	if err := s.schema.DeleteClass(ctx, className); err != nil {
		return fmt.Errorf("delete class %s: %w", className, err)
	}
	return nil
}
