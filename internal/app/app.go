package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"folio/backend/features/book"
	"folio/backend/features/chat"
	"folio/backend/features/course"
	"folio/backend/features/job"
	"folio/backend/features/stats"
	"folio/backend/features/summary"
	"folio/backend/internal/adapter/gemini"
	wstore "folio/backend/internal/adapter/weaviate"
	"folio/backend/internal/config"
	"folio/backend/internal/engine"
	"folio/backend/internal/ingest"
	"folio/backend/internal/middleware"
	"folio/backend/internal/worker"
)

// EventPublisher is the producer surface the services need.
type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler        http.Handler
	BookService    *book.Service
	IngestConsumer *worker.IngestConsumer

	port int
}

func New(ctx context.Context, cfg *config.Config, db *sql.DB, store *wstore.Store, pub EventPublisher) (*App, error) {
	genClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.FallbackModel)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: %w", err)
	}

	extractor := ingest.NewPDFExtractor()

	// Repositories
	bookRepo := book.NewPostgresRepo(db)
	jobRepo := job.NewPostgresRepo(db)
	chatRepo := chat.NewPostgresRepo(db)
	courseRepo := course.NewPostgresRepo(db)
	summaryRepo := summary.NewPostgresRepo(db)

	// Ingestion pipeline
	pipeline := ingest.NewPipeline(extractor, embedder, genClient, store, bookRepo, ingest.Config{
		EmbedConcurrency:   cfg.EmbedConcurrency,
		FigureConcurrency:  cfg.FigureConcurrency,
		BatchBudget:        cfg.EmbedBatchBudget,
		MaxChunkChars:      cfg.MaxChunkChars,
		MinFigureDimension: cfg.MinFigureDimension,
	})

	// Feature: Book
	bookService := book.NewService(bookRepo, pub, store)
	bookHandler := book.NewHandler(bookService, cfg.UploadDir, cfg.MaxUploadSizeMB)

	// Feature: Job
	jobService := job.NewService(jobRepo, pub)
	jobHandler := job.NewHandler(jobService)

	// Generation workflows share the adapters but each executor carries only
	// the stores its workflow saves to.
	chatService := chat.NewService(chatRepo, &engine.Executor{
		Embedder:  embedder,
		Generator: genClient,
		Searcher:  store,
		Messages:  chatRepo,
	}, cfg.GenerationLoopLimit)
	chatHandler := chat.NewHandler(chatService)

	courseService := course.NewService(courseRepo, summaryRepo, &engine.Executor{
		Generator: genClient,
		Outlines:  courseRepo,
	}, cfg.GenerationLoopLimit)
	courseHandler := course.NewHandler(courseService)

	summaryService := summary.NewService(summaryRepo, bookRepo, extractor, &engine.Executor{
		Generator: genClient,
		Summaries: summaryRepo,
	})
	summaryHandler := summary.NewHandler(summaryService)

	// Feature: Stats
	statsHandler := stats.NewHandler(bookRepo, jobRepo, store)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST /books/upload", middleware.CorrelationID(enableCORS(bookHandler.Upload)))
	mux.Handle("GET /books", middleware.CorrelationID(enableCORS(bookHandler.List)))
	mux.Handle("GET /books/{id}", middleware.CorrelationID(enableCORS(bookHandler.Get)))
	mux.Handle("GET /books/{id}/cover", middleware.CorrelationID(enableCORS(bookHandler.Cover)))
	mux.Handle("DELETE /books/{id}", middleware.CorrelationID(enableCORS(bookHandler.Delete)))
	mux.Handle("POST /books/{id}/reingest", middleware.CorrelationID(enableCORS(bookHandler.Reingest)))

	mux.Handle("POST /books/{id}/summaries", middleware.CorrelationID(enableCORS(summaryHandler.Generate)))
	mux.Handle("GET /books/{id}/summaries", middleware.CorrelationID(enableCORS(summaryHandler.List)))

	mux.Handle("POST /chat/sessions", middleware.CorrelationID(enableCORS(chatHandler.CreateSession)))
	mux.Handle("GET /chat/sessions", middleware.CorrelationID(enableCORS(chatHandler.ListSessions)))
	mux.Handle("GET /chat/sessions/{id}", middleware.CorrelationID(enableCORS(chatHandler.GetSession)))
	mux.Handle("DELETE /chat/sessions/{id}", middleware.CorrelationID(enableCORS(chatHandler.DeleteSession)))
	mux.Handle("POST /chat/sessions/{id}/messages", middleware.CorrelationID(enableCORS(chatHandler.Ask)))

	mux.Handle("POST /courses", middleware.CorrelationID(enableCORS(courseHandler.Generate)))
	mux.Handle("GET /courses", middleware.CorrelationID(enableCORS(courseHandler.List)))
	mux.Handle("GET /courses/{id}", middleware.CorrelationID(enableCORS(courseHandler.Get)))
	mux.Handle("DELETE /courses/{id}", middleware.CorrelationID(enableCORS(courseHandler.Delete)))
	mux.Handle("POST /courses/{id}/revise", middleware.CorrelationID(enableCORS(courseHandler.Revise)))

	mux.Handle("GET /jobs/failed", middleware.CorrelationID(enableCORS(jobHandler.List)))
	mux.Handle("POST /jobs/{id}/retry", middleware.CorrelationID(enableCORS(jobHandler.Retry)))

	mux.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.Get)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:        mux,
		BookService:    bookService,
		IngestConsumer: worker.NewIngestConsumer(pipeline, bookRepo, jobRepo),
		port:           cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
