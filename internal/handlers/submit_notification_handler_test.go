package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"io.winapps.pushcast/internal/dispatch"
	"io.winapps.pushcast/internal/handlers"
	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

type fakeResolver struct {
	tokens []string
	called bool
}

func (f *fakeResolver) Resolve(ctx context.Context, target broadcastmodels.TargetSpec) ([]string, error) {
	f.called = true
	return f.tokens, nil
}

type fakeSender struct {
	result    dispatch.Result
	called    bool
	gotTokens []string
	gotTarget broadcastmodels.TargetSpec
}

func (f *fakeSender) Send(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, tokens []string) (dispatch.Result, error) {
	f.called = true
	f.gotTokens = tokens
	f.gotTarget = target
	return f.result, nil
}

func submitRouter(resolver *fakeResolver, sender *fakeSender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := handlers.NewBroadcastHandler(resolver, sender, zap.NewNop().Sugar())
	router.POST("/api/v1/notifications/submit", handler.SubmitNotification)
	return router
}

func doSubmit(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitNotification(t *testing.T) {
	resolver := &fakeResolver{tokens: []string{"t-1", "t-2", "t-3"}}
	sender := &fakeSender{result: dispatch.Result{Sent: 3, Success: 2, Failed: 1}}
	router := submitRouter(resolver, sender)

	w := doSubmit(t, router, `{"title":"Promo","body":"20% off","target":"all"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sent":3,"success":2,"failed":1}`, w.Body.String())
	assert.Equal(t, []string{"t-1", "t-2", "t-3"}, sender.gotTokens)
	assert.Equal(t, broadcastmodels.TargetAll, sender.gotTarget)
}

func TestSubmitNotificationRejectsUnknownTarget(t *testing.T) {
	resolver := &fakeResolver{}
	sender := &fakeSender{}
	router := submitRouter(resolver, sender)

	w := doSubmit(t, router, `{"title":"Promo","body":"20% off","target":"everyone"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resolver.called)
	assert.False(t, sender.called)
}

func TestSubmitNotificationRejectsInvalidContent(t *testing.T) {
	resolver := &fakeResolver{}
	sender := &fakeSender{}
	router := submitRouter(resolver, sender)

	w := doSubmit(t, router, `{"title":"","body":"20% off","target":"all"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title")
	// Rejected before resolution or dispatch.
	assert.False(t, resolver.called)
	assert.False(t, sender.called)
}
