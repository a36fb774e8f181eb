package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"wisefido-shift/internal/domain"
	"wisefido-shift/internal/repository"
	"wisefido-shift/internal/service"
	"wisefido-shift/internal/status"
	"wisefido-shift/internal/store"
)

// HeaderOwnerID identity set by the upstream auth layer
const HeaderOwnerID = "X-Owner-ID"

type punchInRequest struct {
	IsHalfDay bool `json:"isHalfDay"`
}

type punchOutRequest struct {
	ID           *int64 `json:"id" validate:"omitempty,gt=0"`
	ConfirmEarly bool   `json:"confirmEarly"`
}

// earlyPunchOut result of a 412 response
type earlyPunchOut struct {
	RecordID         int64  `json:"recordId"`
	Remaining        string `json:"remaining"` // "Xh Ym"
	RemainingSeconds int64  `json:"remainingSeconds"`
	Kind             string `json:"kind"`
}

type currentShift struct {
	Record           *domain.RecordView `json:"record"`
	Remaining        string             `json:"remaining,omitempty"`
	RemainingSeconds int64              `json:"remainingSeconds"`
	Overdue          bool               `json:"overdue"`
}

// ShiftHandler attendance endpoints
type ShiftHandler struct {
	svc      *service.ShiftService
	history  *store.HistoryCache // optional
	validate *validator.Validate
	logger   *zap.Logger
}

func NewShiftHandler(svc *service.ShiftService, history *store.HistoryCache, logger *zap.Logger) *ShiftHandler {
	return &ShiftHandler{
		svc:      svc,
		history:  history,
		validate: validator.New(),
		logger:   logger,
	}
}

// GET /api/attendance
// newest first; served from the history cache when the store is unavailable
func (h *ShiftHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	records, err := h.svc.ListHistory(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrStoreUnavailable) && h.history != nil {
			if cached, cerr := h.history.Get(ctx, ownerID); cerr == nil {
				h.logger.Warn("Shift store unavailable, serving cached history",
					zap.String("owner_id", ownerID),
					zap.Error(err),
				)
				writeJSON(w, http.StatusOK, Warn(ResultStaleHistory, "store unavailable, showing cached history", cached))
				return
			}
		}
		h.writeError(w, r, err)
		return
	}

	views := domain.Views(records, h.svc.Location())
	if h.history != nil {
		if err := h.history.Put(context.WithoutCancel(ctx), ownerID, views); err != nil {
			h.logger.Debug("History cache update failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, Ok(views))
}

// GET /api/attendance/current
// result.record is null when no shift is open
func (h *ShiftHandler) Current(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.CurrentShift(r.Context(), ownerID)
	if errors.Is(err, service.ErrNoOpenShift) {
		writeJSON(w, http.StatusOK, Ok(currentShift{}))
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.svc.Now()
	remaining := status.RemainingTime(rec, now)
	view := rec.View(h.svc.Location())
	writeJSON(w, http.StatusOK, Ok(currentShift{
		Record:           &view,
		Remaining:        status.FormatRemaining(remaining),
		RemainingSeconds: int64(remaining / time.Second),
		Overdue:          status.IsOverdue(rec.PunchInAt, now, rec.IsHalfDay),
	}))
}

// POST /api/attendance/punch-in
// body: { isHalfDay?: boolean }
func (h *ShiftHandler) PunchIn(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	var req punchInRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}

	rec, err := h.svc.PunchIn(r.Context(), ownerID, req.IsHalfDay)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateHistory(r.Context(), ownerID)
	writeJSON(w, http.StatusCreated, Ok(rec.View(h.svc.Location())))
}

// POST /api/attendance/punch-out
// body: { id?: number, confirmEarly?: boolean }
// 412 with the shortfall when the shift is short and confirmEarly is not set
func (h *ShiftHandler) PunchOut(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := h.ownerID(w, r)
	if !ok {
		return
	}
	var req punchOutRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid json body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	ctx := r.Context()

	if !req.ConfirmEarly {
		open, err := h.svc.CurrentShift(ctx, ownerID)
		switch {
		case err == nil:
			if req.ID == nil || *req.ID == open.ID {
				if remaining := status.RemainingTime(open, h.svc.Now()); remaining > 0 {
					writeJSON(w, http.StatusPreconditionFailed, Warn(ResultEarlyPunchOut,
						"shift not complete, confirm early punch-out",
						earlyPunchOut{
							RecordID:         open.ID,
							Remaining:        status.FormatRemaining(remaining),
							RemainingSeconds: int64(remaining / time.Second),
							Kind:             open.Kind(),
						}))
					return
				}
			}
		case errors.Is(err, service.ErrNoOpenShift):
			// reported by the punch-out itself
		default:
			h.writeError(w, r, err)
			return
		}
	}

	var (
		rec *domain.AttendanceRecord
		err error
	)
	if req.ID != nil {
		rec, err = h.svc.PunchOutRecord(ctx, ownerID, *req.ID)
	} else {
		rec, err = h.svc.PunchOut(ctx, ownerID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidateHistory(ctx, ownerID)
	writeJSON(w, http.StatusOK, Ok(rec.View(h.svc.Location())))
}

func (h *ShiftHandler) ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(HeaderOwnerID)
	if err := h.validate.Var(ownerID, "required,max=128,printascii"); err != nil {
		writeJSON(w, http.StatusUnauthorized, Fail("missing or invalid "+HeaderOwnerID))
		return "", false
	}
	return ownerID, true
}

func (h *ShiftHandler) invalidateHistory(ctx context.Context, ownerID string) {
	if h.history == nil {
		return
	}
	if err := h.history.Invalidate(context.WithoutCancel(ctx), ownerID); err != nil {
		h.logger.Debug("History cache invalidate failed", zap.Error(err))
	}
}

func (h *ShiftHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("Shift request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
	}
	msg := err.Error()
	if code == http.StatusServiceUnavailable {
		msg = repository.ErrStoreUnavailable.Error()
	}
	writeJSON(w, code, Fail(msg))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidOwner):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyOpen),
		errors.Is(err, service.ErrAlreadyClosed),
		errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoOpenShift):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
