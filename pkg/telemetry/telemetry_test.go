package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorded() (*Telemetry, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return &Telemetry{tracer: provider.Tracer("test"), provider: provider}, recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestNewDisabled(t *testing.T) {
	tel, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.NotNil(t, tel.Tracer())
	assert.NoError(t, tel.Close())
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tel, recorder := newRecorded()

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("requestId", "req-1"); c.Next() })
	router.Use(tel.HTTPMiddleware())
	router.GET("/admin/ohdear/checks/:id", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/ohdear/checks/7", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /admin/ohdear/checks/:id", spans[0].Name())
	a := attrs(spans[0])
	assert.Equal(t, "req-1", a["http.request_id"].AsString())
	assert.Equal(t, int64(http.StatusBadGateway), a["http.status_code"].AsInt64())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	assert.Equal(t, "GET unmatched", spans[1].Name())
}

func TestAPISpan(t *testing.T) {
	tel, recorder := newRecorded()

	_, span := StartAPISpan(context.Background(), tel.Tracer(), "site", http.MethodGet)
	EndSpan(span, nil)
	_, span = StartAPISpan(context.Background(), tel.Tracer(), "me", http.MethodGet)
	EndSpan(span, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "ohdear.site", spans[0].Name())
	assert.Equal(t, "site", attrs(spans[0])["ohdear.endpoint"].AsString())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Len(t, spans[1].Events(), 1)
}
