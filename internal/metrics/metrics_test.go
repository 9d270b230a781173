package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "418")))
}

func TestDomainCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Callback("payment_webhook", "applied")
	m.Callback("payment_webhook", "applied")
	m.Compensation("withdrawal")
	m.CartsSwept(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Callbacks.WithLabelValues("payment_webhook", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Compensations.WithLabelValues("withdrawal")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.Swept))

	var nilMetrics *Metrics
	nilMetrics.Callback("x", "y")
}
