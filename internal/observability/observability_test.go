package observability

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func TestPublishEventCountsFailures(t *testing.T) {
	pub := new(publisherMock)
	SetPublisher(pub)
	t.Cleanup(func() { SetPublisher(nil) })

	env := EventEnvelope{EventType: "ws_events", EventName: "ws_connect"}
	pub.On("Publish", mock.Anything, "ws_events.direct", env).Return(assert.AnError).Once()

	before := testutil.ToFloat64(amqpPublishErrorsTotal)
	err := PublishEvent(context.Background(), "ws_events.direct", env)
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(amqpPublishErrorsTotal))
	pub.AssertExpectations(t)
}

func TestIncMessageOpLabelsByKind(t *testing.T) {
	before := testutil.ToFloat64(messageOpsTotal.WithLabelValues("send_text", "blocked"))
	IncMessageOp("send_text", apperr.Blocked("nope"))
	assert.Equal(t, before+1, testutil.ToFloat64(messageOpsTotal.WithLabelValues("send_text", "blocked")))
}

func TestRequestIDPrefersContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-Id", "from-header")
	assert.Equal(t, "from-header", RequestIDFromRequest(req))

	req = req.WithContext(WithRequestID(req.Context(), "from-ctx"))
	assert.Equal(t, "from-ctx", RequestIDFromRequest(req))
}

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, "10.0.0.1", IPFromRequest(req))
}
