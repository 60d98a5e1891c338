package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folio/backend/features/job"
	"folio/backend/internal/ingest"
)

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) Ingest(ctx context.Context, data []byte, bookID string, opts ingest.Options) (*ingest.Result, error) {
	args := m.Called(ctx, data, bookID, opts)
	if res, ok := args.Get(0).(*ingest.Result); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockBookTracker struct {
	mock.Mock
}

func (m *MockBookTracker) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockBookTracker) UpdatePageCount(ctx context.Context, id string, pages int) error {
	args := m.Called(ctx, id, pages)
	return args.Error(0)
}

type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

func (m *MockJobRepo) List(ctx context.Context) ([]job.Job, error) {
	args := m.Called(ctx)
	return args.Get(0).([]job.Job), args.Error(1)
}

func (m *MockJobRepo) Get(ctx context.Context, id string) (*job.Job, error) {
	args := m.Called(ctx, id)
	if j, ok := args.Get(0).(*job.Job); ok {
		return j, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockJobRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newTestConsumer(t *testing.T, fileData []byte, fileErr error) (*IngestConsumer, *MockIngestor, *MockBookTracker, *MockJobRepo) {
	t.Helper()
	pipe := new(MockIngestor)
	books := new(MockBookTracker)
	jobs := new(MockJobRepo)
	c := NewIngestConsumer(pipe, books, jobs)
	c.readFile = func(string) ([]byte, error) { return fileData, fileErr }
	return c, pipe, books, jobs
}

func ingestMessage(t *testing.T, p IngestBookPayload) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(p)
	require.NoError(t, err)
	return nsq.NewMessage(nsq.MessageID{}, body)
}

func TestIngestConsumer_HandleMessage(t *testing.T) {
	pdfData := []byte("%PDF-1.4 fake")

	t.Run("Successful Ingestion", func(t *testing.T) {
		c, pipe, books, _ := newTestConsumer(t, pdfData, nil)

		books.On("UpdateStatus", mock.Anything, "book-1", "processing").Return(nil)
		pipe.On("Ingest", mock.Anything, pdfData, "book-1", ingest.Options{}).
			Return(&ingest.Result{BookID: "book-1", PageCount: 12, ChunksCreated: 30, Status: ingest.StatusCompleted}, nil)
		books.On("UpdatePageCount", mock.Anything, "book-1", 12).Return(nil)
		books.On("UpdateStatus", mock.Anything, "book-1", ingest.StatusCompleted).Return(nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/a.pdf"})
		require.NoError(t, c.HandleMessage(msg))

		pipe.AssertExpectations(t)
		books.AssertExpectations(t)
	})

	t.Run("Rebuild Options Are Forwarded", func(t *testing.T) {
		c, pipe, books, _ := newTestConsumer(t, pdfData, nil)

		books.On("UpdateStatus", mock.Anything, "book-1", mock.Anything).Return(nil)
		books.On("UpdatePageCount", mock.Anything, "book-1", mock.Anything).Return(nil)
		pipe.On("Ingest", mock.Anything, pdfData, "book-1", ingest.Options{SkipFigures: true, Rebuild: true}).
			Return(&ingest.Result{BookID: "book-1", Status: ingest.StatusCompleted}, nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/a.pdf", SkipFigures: true, Rebuild: true})
		require.NoError(t, c.HandleMessage(msg))
		pipe.AssertExpectations(t)
	})

	t.Run("Empty Body Is Dropped", func(t *testing.T) {
		c, pipe, _, jobs := newTestConsumer(t, pdfData, nil)

		msg := nsq.NewMessage(nsq.MessageID{}, nil)
		require.NoError(t, c.HandleMessage(msg))

		pipe.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		jobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Invalid JSON Is A Poison Pill", func(t *testing.T) {
		c, pipe, _, jobs := newTestConsumer(t, pdfData, nil)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte("{not json"))
		require.NoError(t, c.HandleMessage(msg))

		pipe.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		jobs.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Missing Book ID Is Dropped", func(t *testing.T) {
		c, pipe, _, _ := newTestConsumer(t, pdfData, nil)

		msg := ingestMessage(t, IngestBookPayload{Path: "/uploads/a.pdf"})
		require.NoError(t, c.HandleMessage(msg))
		pipe.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unreadable File Is Dead Lettered", func(t *testing.T) {
		c, pipe, books, jobs := newTestConsumer(t, nil, errors.New("no such file"))

		jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
			return j.BookID == "book-1" && j.Handler == "ingest-worker"
		})).Return(nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/gone.pdf"})
		require.NoError(t, c.HandleMessage(msg))

		jobs.AssertExpectations(t)
		pipe.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		books.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Ingestion Failure Dead Letters With Original Payload", func(t *testing.T) {
		c, pipe, books, jobs := newTestConsumer(t, pdfData, nil)

		books.On("UpdateStatus", mock.Anything, "book-1", "processing").Return(nil)
		pipe.On("Ingest", mock.Anything, pdfData, "book-1", mock.Anything).
			Return(nil, errors.New("extract pages: malformed xref"))
		books.On("UpdateStatus", mock.Anything, "book-1", "failed").Return(nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/a.pdf"})
		jobs.On("Save", mock.Anything, mock.MatchedBy(func(j *job.Job) bool {
			var p IngestBookPayload
			if err := json.Unmarshal(j.Payload, &p); err != nil {
				return false
			}
			return p.BookID == "book-1" && j.Error == "extract pages: malformed xref"
		})).Return(nil)

		require.NoError(t, c.HandleMessage(msg))

		books.AssertExpectations(t)
		jobs.AssertExpectations(t)
		books.AssertNotCalled(t, "UpdatePageCount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Partial Result Records Degraded Status", func(t *testing.T) {
		c, pipe, books, _ := newTestConsumer(t, pdfData, nil)

		books.On("UpdateStatus", mock.Anything, "book-1", "processing").Return(nil)
		pipe.On("Ingest", mock.Anything, pdfData, "book-1", mock.Anything).
			Return(&ingest.Result{BookID: "book-1", PageCount: 3, FailedBatches: 1, Status: ingest.StatusPartial}, nil)
		books.On("UpdatePageCount", mock.Anything, "book-1", 3).Return(nil)
		books.On("UpdateStatus", mock.Anything, "book-1", ingest.StatusPartial).Return(nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/a.pdf"})
		require.NoError(t, c.HandleMessage(msg))
		books.AssertExpectations(t)
	})

	t.Run("Status Update Failure Does Not Requeue", func(t *testing.T) {
		c, pipe, books, _ := newTestConsumer(t, pdfData, nil)

		books.On("UpdateStatus", mock.Anything, "book-1", mock.Anything).Return(errors.New("db down"))
		books.On("UpdatePageCount", mock.Anything, "book-1", mock.Anything).Return(nil)
		pipe.On("Ingest", mock.Anything, pdfData, "book-1", mock.Anything).
			Return(&ingest.Result{BookID: "book-1", Status: ingest.StatusCompleted}, nil)

		msg := ingestMessage(t, IngestBookPayload{BookID: "book-1", Path: "/uploads/a.pdf"})
		assert.NoError(t, c.HandleMessage(msg))
	})
}
