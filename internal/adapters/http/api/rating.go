package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/puzzlerating/internal/adapters/wire"
	"github.com/okian/puzzlerating/internal/domain/rating"
	"github.com/okian/puzzlerating/pkg/logger"
)

// RatingHandler handles rating adjustment requests.
type RatingHandler struct {
	deps         Dependencies
	maxBodyBytes int64
	logger       logger.Logger
}

// NewRatingHandler creates a new rating handler.
func NewRatingHandler(deps Dependencies, maxBodyBytes int64, l logger.Logger) *RatingHandler {
	return &RatingHandler{deps: deps, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandlePostRating handles POST /rating-adjustment requests. The body is a
// metrics record; ?explain=true adds the stage breakdown to the response.
func (h *RatingHandler) HandlePostRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rating_adjustment"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()

	explain, err := parseExplain(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	m, err := wire.Decode(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.deps.Reject(err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrPayloadTooLarge))
			return
		}
		h.writeRatingError(ctx, w, op, err)
		return
	}

	b, err := h.deps.Evaluate(ctx, m)
	if err != nil {
		h.writeRatingError(ctx, w, op, err)
		return
	}

	resp := wire.Response{RatingDelta: b.Delta}
	if explain {
		resp.Breakdown = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RatingHandler) writeRatingError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	h.logger.Debug(ctx, "rating request rejected",
		logger.String("requestId", RequestIDFromContext(ctx)),
		logger.Error(err),
	)
	switch {
	case errors.Is(err, rating.ErrParse):
		writeError(w, http.StatusBadRequest, wire.CodeParseError, WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, rating.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, wire.CodeInvalidInput, WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, wire.CodeCancelled, WrapKind(op, ErrUnavailable, err))
	default:
		h.logger.Error(ctx, "rating evaluation failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, wire.CodeInternal, WrapKind(op, ErrInternal, err))
	}
}

func parseExplain(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("explain")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
