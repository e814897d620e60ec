package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"

	"smartkb/internal/claims"
	"smartkb/internal/config"
	"smartkb/internal/models"
	"smartkb/internal/progress"
	"smartkb/internal/providers"
	"smartkb/internal/storage"
	"smartkb/internal/suggest"
	"smartkb/internal/vector"
	"smartkb/internal/workflows"
)

type Server struct {
	cfg         config.Config
	db          *storage.DB
	articleRepo *storage.ArticleRepo
	runRepo     *storage.RunRepo
	searcher    *vector.Searcher
	providers   *providers.Manager
	temporal    tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	if err := storage.EnsureSchema(ctx, db, cfg.EmbedDim); err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:         cfg,
		db:          db,
		articleRepo: storage.NewArticleRepo(db),
		runRepo:     storage.NewRunRepo(db),
		searcher:    vector.NewSearcher(db.Pool),
		providers:   pm,
		temporal:    tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/runs/", s.handleRunsScoped)
	mux.HandleFunc("/articles", s.handleArticles)
	mux.HandleFunc("/suggest", s.handleSuggest)
	mux.HandleFunc("/claims", s.handleClaims)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Cases     []models.RawCase `json:"cases"`
		Threshold int              `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if len(req.Cases) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("cases are required"))
		return
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.cfg.MinClusterSize
	}

	runID := uuid.NewString()
	if err := s.runRepo.CreateRun(r.Context(), runID, len(req.Cases), threshold); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "kbgen-" + runID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.KBGenerateWorkflow, workflows.KBGenerateInput{
		RunID:           runID,
		RawCases:        req.Cases,
		Threshold:       threshold,
		LLMProviders:    s.providers.LLMCount(),
		EmbedProviders:  s.providers.EmbedCount(),
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
		MaxTokens:       s.cfg.MaxTokens,
		Temperature:     s.cfg.Temperature,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "workflow_id": we.GetID(), "workflow_run_id": we.GetRunID()})
}

func (s *Server) handleRunsScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	runID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		run, err := s.runRepo.GetRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
		return
	}

	switch parts[1] {
	case "progress":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.RunProgress
		resp, err := s.temporal.QueryWorkflow(r.Context(), "kbgen-"+runID, "", workflows.QueryGetRunProgress)
		if err != nil {
			// Fallback to DB state when no active workflow query is available.
			run, dbErr := s.runRepo.GetRun(r.Context(), runID)
			if dbErr != nil {
				writeErr(w, http.StatusNotFound, dbErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.RunProgress{
				RunID:           run.RunID,
				Status:          run.Status,
				TotalCases:      run.CaseCount,
				TotalCategories: run.Categories,
				Articles:        run.Articles,
				Skipped:         run.Skipped,
				FailReason:      run.FailReason,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	case "articles":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		articles, err := s.articleRepo.ListArticlesByRun(r.Context(), runID)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	articles, err := s.articleRepo.ListArticles(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"articles": articles})
}

// handleSuggest accepts the case either as query parameters (GET) or a JSON
// body (POST) so dashboard links and API clients hit the same flow.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggest.Request
	var mode string
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Title = q.Get("title")
		req.Description = q.Get("description")
		mode = q.Get("mode")
	case http.MethodPost:
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Mode        string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Title = body.Title
		req.Description = body.Description
		mode = body.Mode
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("title or description is required"))
		return
	}

	emitter := progress.NewEmitter(progress.ParseMode(mode), s.cfg.LogPacingMS)
	o := suggest.NewOrchestrator(
		&preferredEmbedder{m: s.providers, dim: s.cfg.EmbedDim},
		s.searcher,
		&preferredLLM{m: s.providers},
		emitter,
		s.cfg.EmbedDim,
		s.cfg.SearchTopK,
	)
	res, err := o.Suggest(r.Context(), req)
	if err != nil {
		// A guidance failure still carries the retrieved matches; render
		// them with the error so the search work stays visible.
		if res != nil && len(res.Matches) > 0 {
			writeJSON(w, http.StatusOK, map[string]any{
				"matches":        res.Matches,
				"guidance":       "",
				"guidance_error": toAPIError(http.StatusBadGateway, err).Message,
				"log":            emitter.Snapshot(),
			})
			return
		}
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches":  res.Matches,
		"guidance": res.Guidance,
		"provider": res.Provider,
		"log":      emitter.Snapshot(),
	})
}

func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["receipts"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no receipt files provided"))
		return
	}

	policy := strings.TrimSpace(r.FormValue("policy"))
	if policy == "" {
		loaded, err := claims.LoadPolicy(s.cfg.PolicyPath)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, fmt.Errorf("load reimbursement policy: %w", err))
			return
		}
		policy = loaded
	}

	receipts := make([]claims.Receipt, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		receipts = append(receipts, claims.Receipt{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	emitter := progress.NewEmitter(progress.ParseMode(r.FormValue("mode")), s.cfg.LogPacingMS)
	ev := claims.NewEvaluator(&preferredLLM{m: s.providers}, emitter, s.cfg.MaxTokens, s.cfg.Temperature)
	result, err := ev.Evaluate(r.Context(), policy, receipts)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"log":    emitter.Snapshot(),
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

// preferredEmbedder and preferredLLM walk the manager's preferred order and
// return the first provider that answers, so synchronous endpoints get the
// same non-mock-first behavior the workflows have.
type preferredEmbedder struct {
	m   *providers.Manager
	dim int
}

func (p *preferredEmbedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	var (
		out  [][]float32
		info providers.ProviderInfo
		err  error
	)
	for _, idx := range p.m.PreferredEmbedOrder() {
		provider, _ := p.m.EmbedProviderByIndex(idx)
		out, info, err = provider.Embed(ctx, req)
		if err == nil && len(out) > 0 {
			return out, info, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("embedding providers unavailable")
	}
	return nil, info, err
}

type preferredLLM struct {
	m *providers.Manager
}

func (p *preferredLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	var (
		resp providers.GenerateResponse
		info providers.ProviderInfo
		err  error
	)
	for _, idx := range p.m.PreferredLLMOrder() {
		provider, _ := p.m.LLMProviderByIndex(idx)
		resp, info, err = provider.Generate(ctx, req)
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return resp, info, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("llm providers unavailable")
	}
	return resp, info, err
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "SK-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "SK-DB-5001",
				Message: "Database schema is not initialized. Restart the service so it can recreate the schema, then retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SK-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SK-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SK-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "SK-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "SK-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "SK-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "SK-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case strings.Contains(low, "cases are required"):
			msg = "At least one case is required to start a generation run."
		case strings.Contains(low, "title or description is required"):
			msg = "A case title or description is required."
		case strings.Contains(low, "no receipt files provided"):
			msg = "No receipt images were provided."
		case strings.Contains(low, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
