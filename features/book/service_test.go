package book

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folio/backend/internal/config"
	"folio/backend/internal/ingest"
	"folio/backend/internal/worker"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepo) Save(ctx context.Context, b *Book) error {
	args := m.Called(ctx, b)
	if args.Error(0) == nil {
		b.ID = "book-1"
	}
	return args.Error(0)
}

func (m *MockRepo) List(ctx context.Context) ([]Book, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Book), args.Error(1)
}

func (m *MockRepo) Get(ctx context.Context, id string) (*Book, error) {
	args := m.Called(ctx, id)
	if b, ok := args.Get(0).(*Book); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRepo) UpdatePageCount(ctx context.Context, id string, pages int) error {
	args := m.Called(ctx, id, pages)
	return args.Error(0)
}

func (m *MockRepo) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepo) ListChapters(ctx context.Context, bookID string) ([]Chapter, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).([]Chapter), args.Error(1)
}

func (m *MockRepo) ListFigures(ctx context.Context, bookID string) ([]Figure, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).([]Figure), args.Error(1)
}

func (m *MockRepo) GetCover(ctx context.Context, bookID string) ([]byte, string, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockRepo) UpsertChapter(ctx context.Context, bookID string, ch ingest.Chapter) error {
	args := m.Called(ctx, bookID, ch)
	return args.Error(0)
}

func (m *MockRepo) SaveFigures(ctx context.Context, figures []ingest.Figure) error {
	args := m.Called(ctx, figures)
	return args.Error(0)
}

func (m *MockRepo) FigureHashes(ctx context.Context, bookID string) (map[string]bool, error) {
	args := m.Called(ctx, bookID)
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockRepo) DeleteBookContent(ctx context.Context, bookID string) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func (m *MockRepo) SetCover(ctx context.Context, bookID string, image []byte, format string) error {
	args := m.Called(ctx, bookID, image, format)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockChunkStore struct {
	mock.Mock
}

func (m *MockChunkStore) DeleteByBook(ctx context.Context, bookID string) error {
	args := m.Called(ctx, bookID)
	return args.Error(0)
}

func TestService_Upload(t *testing.T) {
	t.Run("Queues Ingestion", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)

		repo.On("ExistsByHash", mock.Anything, "hash").Return(false, nil)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		pub.On("Publish", config.TopicIngestBook, mock.Anything).Return(nil)

		svc := NewService(repo, pub, new(MockChunkStore))
		b, err := svc.Upload(context.Background(), "/uploads/x.pdf", "hash", "Title", "Author")
		require.NoError(t, err)
		assert.Equal(t, "book-1", b.ID)
		assert.Equal(t, StatusPending, b.Status)

		pub.AssertCalled(t, "Publish", config.TopicIngestBook, mock.MatchedBy(func(body []byte) bool {
			var p worker.IngestBookPayload
			if err := json.Unmarshal(body, &p); err != nil {
				return false
			}
			return p.BookID == "book-1" && p.Path == "/uploads/x.pdf" && !p.Rebuild
		}))
	})

	t.Run("Rejects Duplicates", func(t *testing.T) {
		repo := new(MockRepo)
		repo.On("ExistsByHash", mock.Anything, "hash").Return(true, nil)

		svc := NewService(repo, new(MockPublisher), new(MockChunkStore))
		_, err := svc.Upload(context.Background(), "/uploads/x.pdf", "hash", "Title", "")
		assert.ErrorIs(t, err, ErrDuplicate)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Publish Failure Marks Book Failed", func(t *testing.T) {
		repo := new(MockRepo)
		pub := new(MockPublisher)

		repo.On("ExistsByHash", mock.Anything, "hash").Return(false, nil)
		repo.On("Save", mock.Anything, mock.Anything).Return(nil)
		repo.On("UpdateStatus", mock.Anything, "book-1", StatusFailed).Return(nil)
		pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("nsqd down"))

		svc := NewService(repo, pub, new(MockChunkStore))
		_, err := svc.Upload(context.Background(), "/uploads/x.pdf", "hash", "Title", "")
		require.Error(t, err)
		repo.AssertCalled(t, "UpdateStatus", mock.Anything, "book-1", StatusFailed)
	})
}

func TestService_Reingest(t *testing.T) {
	repo := new(MockRepo)
	pub := new(MockPublisher)

	repo.On("Get", mock.Anything, "book-1").Return(&Book{ID: "book-1", FilePath: "/uploads/x.pdf"}, nil)
	repo.On("UpdateStatus", mock.Anything, "book-1", StatusPending).Return(nil)
	pub.On("Publish", config.TopicIngestBook, mock.Anything).Return(nil)

	svc := NewService(repo, pub, new(MockChunkStore))
	require.NoError(t, svc.Reingest(context.Background(), "book-1"))

	pub.AssertCalled(t, "Publish", config.TopicIngestBook, mock.MatchedBy(func(body []byte) bool {
		var p worker.IngestBookPayload
		return json.Unmarshal(body, &p) == nil && p.Rebuild
	}))
}

func TestService_Delete(t *testing.T) {
	t.Run("Cleans Both Stores", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)

		repo.On("Get", mock.Anything, "book-1").Return(&Book{ID: "book-1"}, nil)
		chunks.On("DeleteByBook", mock.Anything, "book-1").Return(nil)
		repo.On("DeleteBookContent", mock.Anything, "book-1").Return(nil)
		repo.On("SoftDelete", mock.Anything, "book-1").Return(nil)

		svc := NewService(repo, new(MockPublisher), chunks)
		require.NoError(t, svc.Delete(context.Background(), "book-1"))
		chunks.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("Chunk Cleanup Failure Keeps The Book", func(t *testing.T) {
		repo := new(MockRepo)
		chunks := new(MockChunkStore)

		repo.On("Get", mock.Anything, "book-1").Return(&Book{ID: "book-1"}, nil)
		chunks.On("DeleteByBook", mock.Anything, "book-1").Return(errors.New("weaviate down"))

		svc := NewService(repo, new(MockPublisher), chunks)
		require.Error(t, svc.Delete(context.Background(), "book-1"))
		repo.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
	})
}
