// pkg/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/David-Botos/data-anonymizer/pkg/aggregator"
	"github.com/David-Botos/data-anonymizer/pkg/anonymizer"
	"github.com/David-Botos/data-anonymizer/pkg/model"
	"github.com/David-Botos/data-anonymizer/pkg/tabular"
)

// methodFieldPrefix marks per-column form fields such as method_Country=swap
const methodFieldPrefix = "method_"

// multipartMemory is the part of a form kept in memory; the rest spills to disk
const multipartMemory = 8 << 20

// Options configures the HTTP surface
type Options struct {
	Addr              string
	OutputDir         string
	MaxContentLength  int64
	AllowedExtensions []string
	ConsistencyMode   aggregator.Mode
}

// APIResponse is the JSON envelope of every API reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Issues  interface{} `json:"issues,omitempty"`
}

// AnonymizeResponse names the artifacts of a run
type AnonymizeResponse struct {
	RunID   string                `json:"run_id"`
	Output  string                `json:"output"`
	Log     string                `json:"log"`
	Metrics anonymizer.RunSummary `json:"metrics"`
}

// Server exposes inspection, anonymization and artifact download over HTTP
type Server struct {
	opts       Options
	anonymizer *anonymizer.Anonymizer
	emitter    *tabular.FileEmitter
	router     *mux.Router
	logger     *zap.Logger
}

// New creates a server writing artifacts into opts.OutputDir
func New(opts Options, anon *anonymizer.Anonymizer, logger *zap.Logger) (*Server, error) {
	if anon == nil {
		return nil, errors.New("anonymizer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if opts.MaxContentLength <= 0 {
		return nil, errors.New("max content length must be positive")
	}

	emitter, err := tabular.NewFileEmitter(opts.OutputDir, logger.Named("emitter"))
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:       opts,
		anonymizer: anon,
		emitter:    emitter,
		logger:     logger.Named("http"),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/inspect", s.handleInspect).Methods(http.MethodPost)
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods(http.MethodPost)
	api.HandleFunc("/download/{name}", s.handleArtifact).Methods(http.MethodGet)
	api.HandleFunc("/logs/{name}", s.handleArtifact).Methods(http.MethodGet)

	router.Use(s.logRequests)
	return router
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	datasets, status, err := s.readUpload(w, r)
	if err != nil {
		sendError(w, err, status)
		return
	}

	inspection := anonymizer.Inspect(datasets, s.opts.ConsistencyMode)
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: inspection})
}

func (s *Server) handleAnonymize(w http.ResponseWriter, r *http.Request) {
	datasets, status, err := s.readUpload(w, r)
	if err != nil {
		sendError(w, err, status)
		return
	}

	selection, err := selectionFromForm(r.MultipartForm)
	if err != nil {
		sendError(w, err, http.StatusBadRequest)
		return
	}

	result, err := s.anonymizer.Run(r.Context(), anonymizer.Request{
		Collector: anonymizer.Datasets(datasets...),
		Selection: selection,
		Emitter:   s.emitter,
	})
	if err != nil {
		s.sendRunError(w, err)
		return
	}

	resp := AnonymizeResponse{RunID: result.RunID, Metrics: result.Metrics}
	if len(result.Artifacts) > 0 {
		resp.Output = result.Artifacts[0]
	}
	if len(result.Artifacts) > 1 {
		resp.Log = result.Artifacts[1]
	}
	sendJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleArtifact serves a file from the output directory. Only bare file
// names are accepted so requests cannot leave the directory.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		sendError(w, fmt.Errorf("invalid artifact name %q", name), http.StatusBadRequest)
		return
	}

	isLog := strings.HasPrefix(r.URL.Path, "/api/logs/")
	if isLog != strings.HasPrefix(name, "log_") || (!isLog && !strings.HasPrefix(name, "Anonymized_")) {
		sendError(w, fmt.Errorf("artifact %q not found", name), http.StatusNotFound)
		return
	}

	path := filepath.Join(s.opts.OutputDir, name)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

// readUpload parses the multipart body and reads every "files" part.
// The returned status applies when err is non-nil.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]*model.Dataset, int, error) {
	tooLarge := fmt.Errorf("upload exceeds the %d byte limit", s.opts.MaxContentLength)
	if r.ContentLength > s.opts.MaxContentLength {
		return nil, http.StatusRequestEntityTooLarge, tooLarge
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxContentLength)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, http.StatusRequestEntityTooLarge, tooLarge
		}
		return nil, http.StatusBadRequest, fmt.Errorf("failed to parse upload: %w", err)
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	if len(headers) == 0 {
		return nil, http.StatusBadRequest, errors.New("no file part in the request")
	}

	for _, fh := range headers {
		if err := tabular.CheckAllowed(fh.Filename, s.opts.AllowedExtensions); err != nil {
			return nil, http.StatusUnsupportedMediaType, err
		}
	}

	datasets := make([]*model.Dataset, 0, len(headers))
	for _, fh := range headers {
		ds, err := readPart(fh)
		if err != nil {
			return nil, http.StatusUnprocessableEntity, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, http.StatusOK, nil
}

func readPart(fh *multipart.FileHeader) (*model.Dataset, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	return tabular.Read(filepath.Base(fh.Filename), f)
}

// selectionFromForm merges the "methods" JSON field with method_<column> fields.
// A per-column field replaces the method only; params from the JSON are kept.
func selectionFromForm(form *multipart.Form) (model.Selection, error) {
	selection := model.Selection{}
	if raw := form.Value["methods"]; len(raw) > 0 && strings.TrimSpace(raw[0]) != "" {
		if err := json.Unmarshal([]byte(raw[0]), &selection); err != nil {
			return nil, fmt.Errorf("failed to parse methods: %w", err)
		}
	}

	fields := lo.Filter(lo.Keys(form.Value), func(key string, _ int) bool {
		return strings.HasPrefix(key, methodFieldPrefix) && len(form.Value[key]) > 0
	})
	for _, key := range fields {
		column := strings.TrimPrefix(key, methodFieldPrefix)
		sel := selection[column]
		sel.Method = model.MethodID(form.Value[key][0])
		selection[column] = sel
	}
	return selection, nil
}

func (s *Server) sendRunError(w http.ResponseWriter, err error) {
	category := anonymizer.CategorizeError(err)
	resp := APIResponse{Success: false, Error: err.Error()}

	status := http.StatusInternalServerError
	switch category {
	case anonymizer.ErrorCategoryValidation:
		status = http.StatusUnprocessableEntity
		var verr *anonymizer.ValidationError
		if errors.As(err, &verr) {
			resp.Issues = verr.Issues
		}
	case anonymizer.ErrorCategoryUnsupportedFormat:
		status = http.StatusUnsupportedMediaType
	default:
		s.logger.Error("Anonymization run failed", zap.Error(err))
	}

	sendJSON(w, status, resp)
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, err error, status int) {
	sendJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}
