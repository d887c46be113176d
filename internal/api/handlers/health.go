// health.go — обработчики health-проб и метрик.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/datafixer/internal/config"
)

// ReadinessChecker проверяет готовность внешней зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded" или "fail") и сообщение.
	CheckReady() (status string, message string)
}

// HealthHandler — обработчик health-проб.
type HealthHandler struct {
	pgChecker    ReadinessChecker
	kcChecker    ReadinessChecker
	fixerChecker ReadinessChecker
	metrics      http.Handler
	logger       *slog.Logger
}

// NewHealthHandler создаёт обработчик health-проб.
func NewHealthHandler(pg, kc, fixer ReadinessChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		pgChecker:    pg,
		kcChecker:    kc,
		fixerChecker: fixer,
		metrics:      promhttp.Handler(),
		logger:       logger.With(slog.String("component", "health_handler")),
	}
}

type healthLiveResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type healthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthReadyResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Checks  struct {
		PostgreSQL healthCheck `json:"postgresql"`
		Keycloak   healthCheck `json:"keycloak"`
		Fixer      healthCheck `json:"fixer"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Отвечает 200, пока процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:  "ok",
		Service: "datafixer",
		Version: config.Version,
	})
}

// HealthReady — readiness probe. Проверяет PostgreSQL, Keycloak и
// сервис коррекции. При недоступности любой критичной зависимости
// возвращает 503.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	resp := healthReadyResponse{
		Service: "datafixer",
		Version: config.Version,
	}

	pgStatus, pgMsg := h.pgChecker.CheckReady()
	resp.Checks.PostgreSQL = healthCheck{Status: pgStatus, Message: pgMsg}

	kcStatus, kcMsg := h.kcChecker.CheckReady()
	resp.Checks.Keycloak = healthCheck{Status: kcStatus, Message: kcMsg}

	fxStatus, fxMsg := h.fixerChecker.CheckReady()
	resp.Checks.Fixer = healthCheck{Status: fxStatus, Message: fxMsg}

	resp.Status = overallStatus(pgStatus, kcStatus, fxStatus)

	code := http.StatusOK
	if resp.Status == "fail" {
		code = http.StatusServiceUnavailable
		h.logger.Warn("readiness проба не пройдена",
			slog.String("postgresql", pgStatus),
			slog.String("keycloak", kcStatus),
			slog.String("fixer", fxStatus),
		)
	}

	writeJSON(w, code, resp)
}

// overallStatus сводит статусы зависимостей: любой fail — fail,
// любой degraded — degraded, иначе ok.
func overallStatus(statuses ...string) string {
	overall := "ok"
	for _, s := range statuses {
		switch s {
		case "fail":
			return "fail"
		case "degraded":
			overall = "degraded"
		}
	}
	return overall
}

// GetMetrics отдаёт метрики в формате Prometheus.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
