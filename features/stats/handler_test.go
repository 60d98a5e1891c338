package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	n   int
	err error
}

func (s stubCounter) Count(ctx context.Context) (int, error) { return s.n, s.err }

type stubChunkCounter struct {
	n   int
	err error
}

func (s stubChunkCounter) Count(ctx context.Context, bookID string) (int, error) { return s.n, s.err }

func TestHandler_Get(t *testing.T) {
	t.Run("Reports All Counts", func(t *testing.T) {
		h := NewHandler(stubCounter{n: 4}, stubCounter{n: 1}, stubChunkCounter{n: 230})

		rec := httptest.NewRecorder()
		h.Get(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data Stats `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 4, resp.Data.Books)
		assert.Equal(t, 1, resp.Data.FailedJobs)
		assert.Equal(t, 230, resp.Data.Chunks)
	})

	t.Run("Chunk Count Failure Degrades", func(t *testing.T) {
		h := NewHandler(stubCounter{n: 4}, stubCounter{}, stubChunkCounter{err: errors.New("weaviate down")})

		rec := httptest.NewRecorder()
		h.Get(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Data Stats `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, -1, resp.Data.Chunks)
	})

	t.Run("Database Failure Is An Error", func(t *testing.T) {
		h := NewHandler(stubCounter{err: errors.New("db down")}, stubCounter{}, stubChunkCounter{})

		rec := httptest.NewRecorder()
		h.Get(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
