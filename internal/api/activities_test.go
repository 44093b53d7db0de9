package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goodtune/trackgate/internal/metrics"
	"github.com/goodtune/trackgate/internal/timeular"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records calls and returns canned results.
type fakeClient struct {
	err error

	gotSession timeular.Session
	gotID      string
	gotCreate  timeular.ActivityRequest
	gotEdit    timeular.EditActivityRequest
	calls      int
	ctxErr     error

	activities []timeular.Activity
}

func (f *fakeClient) record(ctx context.Context, s timeular.Session) {
	f.calls++
	f.gotSession = s
	f.ctxErr = ctx.Err()
}

func (f *fakeClient) ListActivities(ctx context.Context, s timeular.Session) (timeular.ActivitiesResponse, error) {
	f.record(ctx, s)
	if f.err != nil {
		return timeular.ActivitiesResponse{}, f.err
	}
	return timeular.ActivitiesResponse{Activities: f.activities}, nil
}

func (f *fakeClient) GetActivity(ctx context.Context, s timeular.Session, id string) (timeular.Activity, error) {
	f.record(ctx, s)
	f.gotID = id
	if f.err != nil {
		return timeular.Activity{}, f.err
	}
	for _, a := range f.activities {
		if a.ID == id {
			return a, nil
		}
	}
	return timeular.Activity{}, &timeular.Error{Op: "get_activity", Kind: timeular.KindNotFound}
}

func (f *fakeClient) CreateActivity(ctx context.Context, s timeular.Session, req timeular.ActivityRequest) (timeular.Activity, error) {
	f.record(ctx, s)
	f.gotCreate = req
	if f.err != nil {
		return timeular.Activity{}, f.err
	}
	return timeular.Activity{ID: "new", Name: req.Name, Color: req.Color, Integration: req.Integration}, nil
}

func (f *fakeClient) EditActivity(ctx context.Context, s timeular.Session, id string, req timeular.EditActivityRequest) (timeular.Activity, error) {
	f.record(ctx, s)
	f.gotID = id
	f.gotEdit = req
	if f.err != nil {
		return timeular.Activity{}, f.err
	}
	return timeular.Activity{ID: id, Name: "edited"}, nil
}

func (f *fakeClient) DeleteActivity(ctx context.Context, s timeular.Session, id string) (timeular.DeleteResponse, error) {
	f.record(ctx, s)
	f.gotID = id
	if f.err != nil {
		return timeular.DeleteResponse{}, f.err
	}
	return timeular.DeleteResponse{Errors: []string{}}, nil
}

var upstreamDown = &timeular.Error{Op: "test", Kind: timeular.KindExternalService, Err: errors.New("connection refused")}

func newTestServer(client ActivityClient) *Server {
	handler := NewActivityHandler(client, timeular.NewSession("tok"), zerolog.Nop())
	return NewServer(Config{ListenAddr: "127.0.0.1:0", RoutePrefix: "/rest/v1"}, handler, zerolog.Nop())
}

func serve(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth_NeverTouchesUpstream(t *testing.T) {
	client := &fakeClient{err: upstreamDown}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Zero(t, client.calls)
}

func TestList(t *testing.T) {
	client := &fakeClient{activities: []timeular.Activity{{ID: "a1", Name: "Coding"}}}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodGet, "/rest/v1/activities", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.False(t, strings.HasSuffix(rec.Body.String(), "\n"))
	assert.JSONEq(t, `{"activities":[{"id":"a1","name":"Coding","color":"","integration":""}]}`, rec.Body.String())
	assert.Equal(t, "tok", client.gotSession.Token())
}

func TestGet(t *testing.T) {
	client := &fakeClient{activities: []timeular.Activity{
		{ID: "a1", Name: "Coding"},
		{ID: "a2", Name: "Meeting"},
	}}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodGet, "/rest/v1/activities/a2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"a2","name":"Meeting","color":"","integration":""}`, rec.Body.String())

	rec = serve(t, srv, http.MethodGet, "/rest/v1/activities/zz", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "activity not found", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestCreate(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodPost, "/rest/v1/activities",
		`{"name":"Reading","color":"#fff","integration":"none"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, timeular.ActivityRequest{Name: "Reading", Color: "#fff", Integration: "none"}, client.gotCreate)
	assert.JSONEq(t, `{"id":"new","name":"Reading","color":"#fff","integration":"none"}`, rec.Body.String())
}

func TestCreate_RejectsIncompleteBody(t *testing.T) {
	for _, body := range []string{`{"name":"Reading","color":"#fff"}`, `not json`, `{}`} {
		client := &fakeClient{}
		rec := serve(t, newTestServer(client), http.MethodPost, "/rest/v1/activities", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Zero(t, client.calls, body)
	}
}

func TestEdit_PassesOnlyPresentFields(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodPatch, "/rest/v1/activities/a1", `{"name":"Focus"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", client.gotID)
	require.NotNil(t, client.gotEdit.Name)
	assert.Equal(t, "Focus", *client.gotEdit.Name)
	assert.Nil(t, client.gotEdit.Color)
}

func TestEdit_RejectsNullBody(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodPatch, "/rest/v1/activities/a1", `null`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", rec.Body.String())
	assert.Zero(t, client.calls)
}

func TestDelete(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client)

	rec := serve(t, srv, http.MethodDelete, "/rest/v1/activities/a1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a1", client.gotID)
	assert.JSONEq(t, `{"errors":[]}`, rec.Body.String())
}

func TestUpstreamFailureMapsTo500(t *testing.T) {
	tests := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/rest/v1/activities", ""},
		{http.MethodGet, "/rest/v1/activities/a1", ""},
		{http.MethodPost, "/rest/v1/activities", `{"name":"n","color":"c","integration":"i"}`},
		{http.MethodPatch, "/rest/v1/activities/a1", `{"color":"#000"}`},
		{http.MethodDelete, "/rest/v1/activities/a1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			srv := newTestServer(&fakeClient{err: upstreamDown})

			rec := serve(t, srv, tt.method, tt.path, tt.body)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "external service error", rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestUpstreamCallSurvivesClientCancellation(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/rest/v1/activities", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, client.ctxErr)
}

func TestRouting(t *testing.T) {
	srv := newTestServer(&fakeClient{})

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, srv, http.MethodPut, "/rest/v1/activities/a1", "{}").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/activities", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/rest/v2/activities", "").Code)
}

func TestRouting_UnmatchedRequestsAreObserved(t *testing.T) {
	srv := newTestServer(&fakeClient{})

	notFound := metrics.HTTPRequestsTotal.WithLabelValues("unmatched", http.MethodGet, "404")
	notAllowed := metrics.HTTPRequestsTotal.WithLabelValues("unmatched", http.MethodPut, "405")
	beforeNotFound := testutil.ToFloat64(notFound)
	beforeNotAllowed := testutil.ToFloat64(notAllowed)

	rec := serve(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	rec = serve(t, srv, http.MethodPut, "/rest/v1/activities/a1", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	assert.Equal(t, beforeNotFound+1, testutil.ToFloat64(notFound))
	assert.Equal(t, beforeNotAllowed+1, testutil.ToFloat64(notAllowed))
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	srv := newTestServer(&fakeClient{activities: []timeular.Activity{{ID: "a1"}}})

	miss := metrics.HTTPRequestsTotal.WithLabelValues("/rest/v1/activities/{id}", http.MethodGet, "404")
	hit := metrics.HTTPRequestsTotal.WithLabelValues("/rest/v1/activities/{id}", http.MethodGet, "200")
	beforeMiss := testutil.ToFloat64(miss)
	beforeHit := testutil.ToFloat64(hit)
	beforeObserved := sampleCount(t, metrics.HTTPRequestDuration, "/rest/v1/activities/{id}", http.MethodGet)

	assert.Equal(t, http.StatusNotFound, serve(t, srv, http.MethodGet, "/rest/v1/activities/zz", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, srv, http.MethodGet, "/rest/v1/activities/a1", "").Code)

	assert.Equal(t, beforeMiss+1, testutil.ToFloat64(miss))
	assert.Equal(t, beforeHit+1, testutil.ToFloat64(hit))
	assert.Equal(t, beforeObserved+2, sampleCount(t, metrics.HTTPRequestDuration, "/rest/v1/activities/{id}", http.MethodGet))
}

func sampleCount(t *testing.T, vec *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, vec.WithLabelValues(labels...).(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(&fakeClient{})

	rec := serve(t, srv, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", rec.Body.String())
}
