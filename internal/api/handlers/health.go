package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the API's backing services. Redis
// is optional (background jobs degrade gracefully without it), so a nil
// client is reported as disabled rather than unhealthy.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redis *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"database": h.databaseStatus(),
		"redis":    h.redisStatus(r),
	}

	status := "healthy"
	code := http.StatusOK
	for _, s := range services {
		if s == "unhealthy" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:   status,
		Services: services,
	})
}

// Ready answers as soon as the process serves traffic; dependency state
// is the health endpoint's concern.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) databaseStatus() string {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) redisStatus(r *http.Request) string {
	if h.redis == nil {
		return "disabled"
	}
	if err := h.redis.Ping(r.Context()).Err(); err != nil {
		return "unhealthy"
	}
	return "healthy"
}
