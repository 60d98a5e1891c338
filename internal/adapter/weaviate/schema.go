package weaviate

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the single Weaviate class holding every embedded chunk.
const ClassName = "BookChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// EnsureSchema checks that the BookChunk class exists and creates or
// extends it if not.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	properties := []*models.Property{
		{
			Name:     "content",
			DataType: []string{"text"},
		},
		{
			Name:     "bookId",
			DataType: []string{"string"}, // UUID as string (exact match)
		},
		{
			Name:     "kind",
			DataType: []string{"string"},
		},
		{
			Name:     "contentHash",
			DataType: []string{"string"},
		},
		{
			Name:     "chapterNumber",
			DataType: []string{"int"},
		},
		{
			Name:     "chapterTitle",
			DataType: []string{"text"},
		},
		{
			Name:     "sectionTitle",
			DataType: []string{"text"},
		},
		{
			Name:     "pageStart",
			DataType: []string{"int"},
		},
		{
			Name:     "pageEnd",
			DataType: []string{"int"},
		},
		{
			Name:     "figureId",
			DataType: []string{"string"},
		},
		{
			Name:     "segmentIndex",
			DataType: []string{"int"},
		},
		{
			Name:     "segmentTotal",
			DataType: []string{"int"},
		},
		{
			Name:     "segmentOffset",
			DataType: []string{"int"},
		},
	}

	if !exists {
		class := &models.Class{
			Class:       ClassName,
			Description: "An embedded slice of a book: window, chapter or figure",
			Vectorizer:  "none",
			Properties:  properties,
		}
		return client.CreateClass(ctx, class)
	}

	// Class exists, check for missing properties
	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}

	return nil
}

type ClientAdapter struct {
	Client *weaviate.Client
}

func NewClientAdapter(client *weaviate.Client) *ClientAdapter {
	return &ClientAdapter{Client: client}
}

func (a *ClientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *ClientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *ClientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.Client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *ClientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.Client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
