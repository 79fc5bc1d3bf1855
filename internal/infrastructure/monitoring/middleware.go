package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// Route template keeps label cardinality bounded for fixture paths.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures one renderer VM entry
type Timer struct {
	start   time.Time
	metrics *Metrics
	entry   string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, entry string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		entry:   entry,
	}
}

// Stop records the duration and whether the entry failed
func (t *Timer) Stop(err error) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordScript(t.entry, time.Since(t.start), err)
}
