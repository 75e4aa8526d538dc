package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"teamtasks/internal/apperr"
)

var (
	registry = prometheus.DefaultRegisterer

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by path/method/code.",
		},
		[]string{"path", "method", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by path/method/code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)

	opEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamtasks_operations_total",
			Help: "Engine operations by name, result and error code.",
		},
		[]string{"op", "result", "code"},
	)

	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teamtasks_operation_duration_seconds",
			Help:    "Duration of engine operations by name and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "result"},
	)

	resetBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamtasks_reset_batches_total",
			Help: "Periodic reset batches by result.",
		},
		[]string{"result"},
	)

	tasksReset = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "teamtasks_tasks_reset_total",
			Help: "Periodic tasks reopened by the reset job.",
		},
	)

	digests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teamtasks_digests_total",
			Help: "Daily digest notifications by result.",
		},
		[]string{"result"},
	)
)

func GinMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	code := strconv.Itoa(c.Writer.Status())
	path := c.FullPath()

	// unmatched routes have no full path
	if path == "" {
		path = c.Request.URL.Path
	}

	if path == "/metrics" || strings.HasPrefix(path, "/swagger/") {
		return
	}

	method := c.Request.Method

	httpRequests.WithLabelValues(path, method, code).Inc()
	httpDuration.WithLabelValues(path, method, code).Observe(time.Since(start).Seconds())
}

func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// ObserveOp records one engine operation. Typed failures are labelled by code,
// anything else as INTERNAL.
func ObserveOp(op string, start time.Time, err error) {
	result := "success"
	code := ""
	if err != nil {
		result = "error"
		code = string(apperr.KindInternal)
		if e, ok := apperr.As(err); ok {
			code = e.Code
		}
	}
	opEvents.WithLabelValues(op, result, code).Inc()
	opDuration.WithLabelValues(op, result).Observe(time.Since(start).Seconds())
}

func ResetBatch(err error, reopened int) {
	if err != nil {
		resetBatches.WithLabelValues("error").Inc()
		return
	}
	resetBatches.WithLabelValues("success").Inc()
	tasksReset.Add(float64(reopened))
}

func Digest(err error) {
	if err != nil {
		digests.WithLabelValues("error").Inc()
		return
	}
	digests.WithLabelValues("success").Inc()
}

func init() {
	collectors := []prometheus.Collector{
		httpRequests,
		httpDuration,
		opEvents,
		opDuration,
		resetBatches,
		tasksReset,
		digests,
	}

	for _, c := range collectors {
		_ = registry.Register(c)
	}
}
