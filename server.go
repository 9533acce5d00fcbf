package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackbridge/internal/cache"
	"trackbridge/internal/catalog"
	"trackbridge/internal/config"
	"trackbridge/internal/logging"
	"trackbridge/internal/matcher"
	"trackbridge/internal/models"
	"trackbridge/internal/parser"
	"trackbridge/internal/pipeline"
)

const maxUploadBytes = 32 << 20

var errMissingToken = errors.New("missing X-DAB-Token")

// catalogResolver picks the catalog for one request and reports the user it
// acts for, when known.
type catalogResolver func(r *http.Request) (catalog.Catalog, string, error)

type server struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      cache.Store
	sources    sourceLoader
	catalogFor catalogResolver
}

type reconcileRequest struct {
	URL        string `json:"url"`
	Type       string `json:"type"`
	PlaylistID string `json:"playlist_id"`
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reconcile API over HTTP with server-sent progress events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup(cmd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(port) != "" {
				cfg.Server.Port = strings.TrimPrefix(strings.TrimSpace(port), ":")
			}
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}

			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			resolver, err := defaultResolver(runCtx, cfg)
			if err != nil {
				return err
			}
			s := &server{
				cfg:        cfg,
				logger:     logging.NewComponentLogger(logger, "server"),
				store:      store,
				sources:    newSourceLoader(runCtx, cfg),
				catalogFor: resolver,
			}
			return s.listen(runCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides server.port)")
	return cmd
}

// defaultResolver uses the shared Spotify catalog, or a per-request DAB
// client authenticated by the X-DAB-Token header (falling back to the
// configured token).
func defaultResolver(ctx context.Context, cfg *config.Config) (catalogResolver, error) {
	if cfg.Catalog.Provider == config.ProviderDAB {
		return func(r *http.Request) (catalog.Catalog, string, error) {
			token := strings.TrimSpace(r.Header.Get("X-DAB-Token"))
			if token == "" {
				token = cfg.DAB.Token
			}
			if token == "" {
				return nil, "", errMissingToken
			}
			client := newDABClient(cfg, token)
			userID, err := client.ValidateToken(r.Context())
			if err != nil {
				return nil, "", err
			}
			return client, userID, nil
		}, nil
	}

	cat, err := newCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return func(*http.Request) (catalog.Catalog, string, error) {
		return cat, "", nil
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/reconcile", s.recoveryMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodOptions {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleReconcile(w, r)
	}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

func (s *server) listen(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *server) recoveryMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("handler panic",
					logging.String(logging.FieldEventType, "handler_panic"),
					logging.String("path", r.URL.Path),
					logging.Any("panic", err),
					logging.String("stack", string(debug.Stack())),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func setupSSE(w http.ResponseWriter) (http.Flusher, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return flusher, nil
}

func (s *server) sendEvent(w http.ResponseWriter, flusher http.Flusher, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("sse marshal failed", logging.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

func (s *server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-DAB-Token")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	earlyFail := func(msg string, code int) {
		http.Error(w, msg, code)
	}

	// Everything up to the SSE switch reports failures as plain HTTP errors.
	cat, userID, err := s.catalogFor(r)
	if err != nil {
		earlyFail("Auth failed: "+err.Error(), http.StatusUnauthorized)
		return
	}

	var (
		records    []models.RawTrackRecord
		source     models.SourceInfo
		playlistID string
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			earlyFail("Invalid multipart form", http.StatusBadRequest)
			return
		}
		if t := r.FormValue("type"); t != "" && t != sourceCSV {
			earlyFail("multipart only supported for type=csv", http.StatusBadRequest)
			return
		}
		playlistID = strings.TrimSpace(r.FormValue("playlist_id"))
		source.Type = sourceCSV
		records, source.Name, err = parser.ParseCSVUpload(r)
		if err != nil {
			earlyFail("CSV parse failed: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		var req reconcileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			earlyFail("Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Type != sourceSpotify && req.Type != sourceYouTube {
			earlyFail("Unsupported source type", http.StatusBadRequest)
			return
		}
		playlistID = strings.TrimSpace(req.PlaylistID)
		records, source, err = s.sources.fromURL(ctx, req.Type, req.URL)
		if err != nil {
			earlyFail("Extraction failed: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	if len(records) == 0 {
		earlyFail("No tracks found", http.StatusBadRequest)
		return
	}

	var existing []models.MatchCandidate
	if playlistID != "" {
		if existing, err = cat.Tracks(ctx, playlistID); err != nil {
			earlyFail("Reading target failed: "+err.Error(), http.StatusBadGateway)
			return
		}
	}

	flusher, err := setupSSE(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	send := func(v any) { s.sendEvent(w, flusher, v) }

	send(map[string]any{
		"status":  "extracting",
		"message": fmt.Sprintf("Parsed %d tracks from %s", len(records), source.Type),
		"count":   len(records),
	})

	p := pipeline.New(
		matcher.New(cat, matcherOptions(s.cfg), s.logger),
		cache.New(s.store, s.logger),
		filterOptions(s.cfg),
		s.logger,
	)
	res, err := p.Run(ctx, pipeline.Input{Source: source, Records: records, Existing: existing},
		func(index, total int, m models.MatchResult) {
			send(map[string]any{
				"status": "processing",
				"index":  index + 1,
				"total":  total,
				"result": m,
			})
		})
	if err != nil {
		send(map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	if ctx.Err() != nil {
		s.logger.Info("client disconnected", logging.String(logging.FieldRunID, res.RunID))
		return
	}

	send(map[string]any{
		"status": "complete",
		"meta": map[string]any{
			"run_id":      res.RunID,
			"user_id":     userID,
			"catalog":     cat.Name(),
			"playlist_id": playlistID,
			"source_name": source.Name,
			"source_type": source.Type,
			"timestamp":   res.Finished.Format(time.RFC3339),
		},
		"quality": res.Quality,
		"stats":   res.Stats,
		"tracks":  res.Items,
		"uris":    res.URIs,
	})
}
