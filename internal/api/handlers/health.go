// health.go — обработчики health endpoints Filebox.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL и директория данных доступны)
// /metrics — Prometheus метрики
package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/filebox/internal/config"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "fail") и сообщение.
	CheckReady() (status, message string)
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	pgChecker   ReadinessChecker
	dataDir     string
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// pgChecker — проверка PostgreSQL (может быть nil — readiness вернёт "fail").
// dataDir — директория blob-хранилища.
func NewHealthHandler(pgChecker ReadinessChecker, dataDir string) *HealthHandler {
	return &HealthHandler{
		pgChecker:   pgChecker,
		dataDir:     dataDir,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// healthReadyResponse — ответ readiness probe.
type healthReadyResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Checks    struct {
		PostgreSQL healthCheckResult `json:"postgresql"`
		DataDir    healthCheckResult `json:"data_dir"`
	} `json:"checks"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "filebox",
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthReady — readiness probe. Проверяет PostgreSQL и директорию данных.
// Возвращает 200 (всё ok) или 503 (хотя бы одна проверка fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthReadyResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "filebox",
	}

	if h.pgChecker != nil {
		pgStatus, pgMsg := h.pgChecker.CheckReady()
		resp.Checks.PostgreSQL = healthCheckResult{Status: pgStatus, Message: pgMsg}
	} else {
		resp.Checks.PostgreSQL = healthCheckResult{Status: "fail", Message: "проверка не настроена"}
	}

	if info, err := os.Stat(h.dataDir); err != nil || !info.IsDir() {
		resp.Checks.DataDir = healthCheckResult{Status: "fail", Message: "директория данных недоступна"}
	} else {
		resp.Checks.DataDir = healthCheckResult{Status: "ok"}
	}

	statusCode := http.StatusOK
	resp.Status = "ok"
	if resp.Checks.PostgreSQL.Status != "ok" || resp.Checks.DataDir.Status != "ok" {
		resp.Status = "fail"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// Metrics отдаёт Prometheus метрики.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}
