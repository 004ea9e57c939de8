package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sadman-arif/consultpay/internal/availability"
)

type AvailabilityHandler struct {
	resolver *availability.Resolver
	logger   *slog.Logger
}

func NewAvailabilityHandler(resolver *availability.Resolver, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{resolver: resolver, logger: logger}
}

type windowItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Windows is public: no auth, anyone shopping for a consultation can see an
// expert's open windows for a day.
func (h *AvailabilityHandler) Windows(w http.ResponseWriter, r *http.Request) {
	expertID := strings.TrimSpace(r.PathValue("id"))
	if expertID == "" {
		http.Error(w, "missing expert id", http.StatusBadRequest)
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	windows, blackout, err := h.resolver.Resolve(r.Context(), expertID, date)
	if err != nil {
		writeErr(w, h.logger, err)
		return
	}

	items := make([]windowItem, 0, len(windows))
	for _, iv := range windows {
		items = append(items, windowItem{
			StartTime: iv.Start.Format(time.RFC3339),
			EndTime:   iv.End.Format(time.RFC3339),
		})
	}
	resp := map[string]any{
		"expert_id": expertID,
		"date":      date.Format("2006-01-02"),
		"windows":   items,
	}
	if blackout != nil {
		resp["unavailable"] = true
		if blackout.Reason != "" {
			resp["unavailable_reason"] = blackout.Reason
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
