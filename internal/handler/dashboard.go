package handler

import (
	"net/http"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/service"
)

// DashboardHandler отдаёт сводную статистику по задачам.
type DashboardHandler struct {
	stats *service.StatsService
}

func NewDashboardHandler(stats *service.StatsService) *DashboardHandler {
	return &DashboardHandler{stats: stats}
}

// Get возвращает текущие показатели: максимум одновременно открытых задач,
// открытые сейчас и закрытые за последнюю неделю.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Statistics(r.Context())
	if err != nil {
		logger.Errorf("DashboardHandler.Get: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
