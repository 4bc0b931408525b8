package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/profile-consolidator/internal/consolidate"
	"github.com/sells-group/profile-consolidator/internal/profile"
	"github.com/sells-group/profile-consolidator/internal/validate"
)

// Wire shapes for the consolidate/validate endpoints. Internal structs
// are not serialized directly; these pin the JSON contract.
type consolidateResponse struct {
	Success           bool     `json:"success"`
	MasterProfileID   int64    `json:"masterProfileId"`
	IsNewProfile      bool     `json:"isNewProfile"`
	MergeID           int64    `json:"mergeId,omitempty"`
	FieldsUpdated     []string `json:"fieldsUpdated,omitempty"`
	ConflictsResolved int      `json:"conflictsResolved"`
}

type verdictResponse struct {
	FieldName         string  `json:"fieldName"`
	OriginalValue     string  `json:"originalValue,omitempty"`
	ValidatedValue    string  `json:"validatedValue,omitempty"`
	Method            string  `json:"method,omitempty"`
	IsValid           bool    `json:"isValid"`
	Confidence        float64 `json:"confidence"`
	DiscrepancyReason string  `json:"discrepancyReason,omitempty"`
}

type validationResultResponse struct {
	Source     string            `json:"source"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"durationMs"`
	Verdicts   []verdictResponse `json:"verdicts"`
}

type validateResponse struct {
	Success           bool                       `json:"success"`
	MasterProfileID   int64                      `json:"masterProfileId"`
	BatchID           string                     `json:"batchId"`
	ValidationResults []validationResultResponse `json:"validationResults"`
	TotalValidations  int                        `json:"totalValidations"`
	AverageConfidence float64                    `json:"averageConfidence"`
	ValidationStatus  string                     `json:"validationStatus"`
}

func newConsolidateResponse(res *consolidate.Result) consolidateResponse {
	return consolidateResponse{
		Success:           true,
		MasterProfileID:   res.ProfileID,
		IsNewProfile:      res.Created,
		MergeID:           res.MergeID,
		FieldsUpdated:     res.FieldsUpdated,
		ConflictsResolved: res.ConflictsResolved,
	}
}

func newValidateResponse(res *validate.BatchResult) validateResponse {
	out := validateResponse{
		Success:           true,
		MasterProfileID:   res.ProfileID,
		BatchID:           res.BatchID,
		AverageConfidence: res.OverallConfidence,
		ValidationStatus:  string(res.Status),
	}
	for _, sr := range res.Results {
		vr := validationResultResponse{
			Source:     sr.Source,
			DurationMS: sr.Duration.Milliseconds(),
			Verdicts:   make([]verdictResponse, 0, len(sr.Verdicts)),
		}
		if sr.Err != nil {
			vr.Error = sr.Err.Error()
		}
		for _, v := range sr.Verdicts {
			vr.Verdicts = append(vr.Verdicts, verdictResponse{
				FieldName:         v.FieldName,
				OriginalValue:     v.OriginalValue,
				ValidatedValue:    v.ValidatedValue,
				Method:            v.Method,
				IsValid:           v.IsValid,
				Confidence:        v.Confidence,
				DiscrepancyReason: v.DiscrepancyReason,
			})
			out.TotalValidations++
		}
		out.ValidationResults = append(out.ValidationResults, vr)
	}
	return out
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the consolidation and validation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/consolidate", handleConsolidate(env))
		r.Post("/validate", handleValidate(env))
		r.Get("/profiles", handleSearchProfiles(env))
		r.Get("/profiles/{id}", handleGetProfile(env))
		r.Get("/profiles/{id}/history", handleProfileHistory(env))
		r.Post("/merges/{id}/rollback", handleRollback(env))
		r.Post("/contributions/{id}/verify", handleVerifyContribution(env))
		r.Get("/sources", handleListSources(env))
	})

	return r
}

func handleConsolidate(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AnalysisID   string                   `json:"analysisId"`
			UserID       string                   `json:"userId"`
			AnalysisData consolidate.AnalysisData `json:"analysisData"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req := consolidate.Request{
			AnalysisID: body.AnalysisID,
			UserID:     body.UserID,
			Data:       body.AnalysisData,
		}
		if user := r.Header.Get("X-User-ID"); user != "" {
			req.UserID = user
		}

		result, err := env.Engine.Consolidate(r.Context(), req)
		switch {
		case eris.Is(err, consolidate.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, "authentication required")
		case eris.Is(err, profile.ErrAmbiguous):
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":      "ambiguous company match",
				"candidates": result.Candidates,
			})
		case err != nil:
			zap.L().Error("consolidate request failed",
				zap.String("analysis_id", req.AnalysisID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "consolidation failed")
		default:
			writeJSON(w, http.StatusOK, newConsolidateResponse(result))
		}
	}
}

func handleValidate(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MasterProfileID int64    `json:"masterProfileId"`
			Categories      []string `json:"categories"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := env.Orchestrator.Validate(r.Context(), req.MasterProfileID, req.Categories)
		if err != nil {
			zap.L().Error("validate request failed",
				zap.Int64("profile_id", req.MasterProfileID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "validation failed")
			return
		}
		writeJSON(w, http.StatusOK, newValidateResponse(result))
	}
}

func handleSearchProfiles(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		limit := 25
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		profiles, err := env.Store.SearchProfiles(r.Context(), query, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "search failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
	}
}

func handleGetProfile(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := env.Store.GetProfile(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleProfileHistory(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		ctx := r.Context()

		contributions, err := env.Store.ListContributions(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		merges, err := env.Store.ListMerges(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		logs, err := env.Store.ListValidationLogs(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		confidence, err := env.Store.ListConfidenceHistory(ctx, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"contributions":      contributions,
			"merges":             merges,
			"validation_logs":    logs,
			"confidence_history": confidence,
		})
	}
}

func handleRollback(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		user := r.Header.Get("X-User-ID")

		result, err := env.Engine.Rollback(r.Context(), id, user)
		switch {
		case eris.Is(err, consolidate.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, "authentication required")
		case err != nil:
			zap.L().Error("rollback failed", zap.Int64("merge_id", id), zap.Error(err))
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeJSON(w, http.StatusOK, newConsolidateResponse(result))
		}
	}
}

func handleVerifyContribution(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		user := r.Header.Get("X-User-ID")
		if user == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if err := env.Store.VerifyContribution(r.Context(), id, user); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"verified": true})
	}
}

func handleListSources(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := env.Store.ListActiveSources(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "source lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
