package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.Event("photo")
	r.Event("photo")
	r.Outcome("created")
	r.Upload(2*time.Second, 1024)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.events.WithLabelValues("photo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.uploads.WithLabelValues("created")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(r.uploadBytes))
}

func TestNilRecorderIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Event("photo")
	r.Outcome("created")
	r.Upload(time.Second, 1)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.Outcome("duplicate")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `immich_bridge_uploads_total{outcome="duplicate"} 1`)
}
