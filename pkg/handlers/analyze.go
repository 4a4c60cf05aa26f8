package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/internal/utils"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/models"
)

// maxBodyBytes bounds request bodies; a few thousand samples fit easily.
const maxBodyBytes = 8 << 20

// ProcessorFunc analyzes one sweep
type ProcessorFunc func(s tafelcore.Sweep, p tafelcore.Params) (*tafelcore.Analysis, error)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AnalyzeHandler analyzes a single sweep synchronously
type AnalyzeHandler struct {
	config    *config.Config
	processor ProcessorFunc
	logger    *slog.Logger
}

// NewAnalyzeHandler creates a new single-sweep handler
func NewAnalyzeHandler(cfg *config.Config, processor ProcessorFunc, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		config:    cfg,
		processor: processor,
		logger:    logger.With(slog.String("handler", "analyze")),
	}
}

// ServeHTTP handles POST /api/v1/analyze
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.SweepRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err), "validation")
		return
	}

	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = utils.GenerateID()
	}

	sweep, err := tafelcore.NewSweep(req.Voltages, req.Currents)
	if err == nil {
		var an *tafelcore.Analysis
		an, err = h.processor(sweep, req.Params.Apply(h.config.Params()))
		if err == nil {
			if !h.config.Quiet {
				h.logger.InfoContext(r.Context(), "sweep analyzed",
					slog.String("request_id", requestID),
					slog.String("sample_id", req.SampleID),
					slog.Int("samples", len(sweep)),
					slog.Float64("tafel_slope", an.Summary.TafelSlope),
				)
			}
			render.JSON(w, r, models.NewAnalysisResponse(requestID, req.SampleID, an))
			return
		}
	}

	kind := tafelcore.ErrorKind(err)
	status := http.StatusUnprocessableEntity
	if kind == "internal" {
		status = http.StatusInternalServerError
		h.logger.ErrorContext(r.Context(), "analysis error",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, r, status, err.Error(), kind)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg, kind string) {
	render.Status(r, status)
	render.JSON(w, r, models.ErrorResponse{Error: msg, Kind: kind})
}

// validationMessage reports the first failed field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return err.Error()
}
