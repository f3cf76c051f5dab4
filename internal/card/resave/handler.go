package resave

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardforge/pkg/platform/httputil"
	"cardforge/pkg/requestcontext"
)

// Handler exposes the resave pass to operators.
type Handler struct {
	runner *Runner
	logger *slog.Logger
}

func NewHandler(runner *Runner, logger *slog.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// Register mounts POST /admin/cards/resave. guard must authenticate the
// operator.
func (h *Handler) Register(r chi.Router, guard func(http.Handler) http.Handler) {
	r.With(guard).Post("/admin/cards/resave", h.HandleResave)
}

// HandleResave runs one pass synchronously and returns its report.
func (h *Handler) HandleResave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "resave pass aborted",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "resave pass complete",
		"request_id", requestcontext.RequestID(ctx),
		"scanned", report.Scanned,
		"changed", report.Changed,
		"failed", report.Failed,
	)
	httputil.WriteJSON(w, http.StatusOK, report)
}
