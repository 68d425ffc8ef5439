package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/poro/notify-engine/internal/service"
)

type stubNotifications struct {
	service.NotificationUseCase
}

type stubTemplates struct {
	service.TemplateUseCase
}

func TestInitRoutesAppliesServerMode(t *testing.T) {
	router := InitRoutes(gin.ReleaseMode, stubNotifications{}, stubTemplates{}, prometheus.NewRegistry())

	assert.Equal(t, gin.ReleaseMode, gin.Mode())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInitRoutesExposesMetrics(t *testing.T) {
	router := InitRoutes(gin.TestMode, stubNotifications{}, stubTemplates{}, prometheus.NewRegistry())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
