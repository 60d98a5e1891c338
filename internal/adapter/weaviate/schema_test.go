package weaviate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	CreatedClass    *models.Class
	ExistingClass   *models.Class
	AddedProperties []*models.Property
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	return m.ExistingClass != nil, nil
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	m.CreatedClass = class
	return nil
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return m.ExistingClass, nil
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.AddedProperties = append(m.AddedProperties, property)
	return nil
}

func TestEnsureSchema_CreatesClass(t *testing.T) {
	client := &MockSchemaClient{}
	require.NoError(t, EnsureSchema(context.Background(), client))
	require.NotNil(t, client.CreatedClass)

	assert.Equal(t, ClassName, client.CreatedClass.Class)
	assert.Equal(t, "none", client.CreatedClass.Vectorizer)

	expectedProps := map[string]string{
		"bookId":      "string",
		"kind":        "string",
		"content":     "text",
		"contentHash": "string",
		"pageStart":   "int",
	}
	byName := map[string][]string{}
	for _, p := range client.CreatedClass.Properties {
		byName[p.Name] = p.DataType
	}
	for name, dataType := range expectedProps {
		require.Contains(t, byName, name)
		assert.Equal(t, []string{dataType}, byName[name])
	}
}

func TestEnsureSchema_AddsMissingProperties(t *testing.T) {
	client := &MockSchemaClient{
		ExistingClass: &models.Class{
			Class: ClassName,
			Properties: []*models.Property{
				{Name: "content", DataType: []string{"text"}},
				{Name: "bookId", DataType: []string{"string"}},
			},
		},
	}

	require.NoError(t, EnsureSchema(context.Background(), client))
	assert.Nil(t, client.CreatedClass)
	require.NotEmpty(t, client.AddedProperties)

	added := map[string]bool{}
	for _, p := range client.AddedProperties {
		added[p.Name] = true
	}
	assert.True(t, added["contentHash"])
	assert.True(t, added["segmentOffset"])
	assert.False(t, added["content"], "existing properties are not re-added")
}

func TestParseHashes(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			ClassName: []interface{}{
				map[string]interface{}{"contentHash": "aaa"},
				map[string]interface{}{"contentHash": "bbb"},
				map[string]interface{}{"contentHash": ""},
			},
		},
	}

	hashes := parseHashes(data)
	assert.Equal(t, map[string]bool{"aaa": true, "bbb": true}, hashes)
}

func TestParseHits(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			ClassName: []interface{}{
				map[string]interface{}{
					"content":       "The mitochondria is the powerhouse.",
					"kind":          "chapter",
					"chapterNumber": float64(3),
					"chapterTitle":  "Cells",
					"pageStart":     float64(41),
					"pageEnd":       float64(52),
					"_additional":   map[string]interface{}{"certainty": 0.91},
				},
			},
		},
	}

	hits := parseHits(data)
	require.Len(t, hits, 1)
	assert.Equal(t, "chapter", hits[0].Kind)
	assert.Equal(t, 3, hits[0].ChapterNumber)
	assert.Equal(t, 41, hits[0].PageStart)
	assert.InDelta(t, 0.91, hits[0].Similarity, 1e-9)
}

func TestParseHits_EmptyResponse(t *testing.T) {
	assert.Nil(t, parseHits(map[string]models.JSONObject{}))
	assert.Nil(t, parseHits(map[string]models.JSONObject{"Get": map[string]interface{}{}}))
}
