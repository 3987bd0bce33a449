package inspect

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "mediatrack/pkg/logx"
)

func get(t *testing.T, h http.Handler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerServesSources(t *testing.T) {
	s := New(Config{Enabled: true}, logx.Nop())
	s.Handle("state", func() any { return map[string]int{"width": 500} })
	s.Handle("", func() any { return nil })
	s.Handle("nil", nil)
	h := s.Handler()

	rec := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(t, h, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var st map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 500, st["width"])

	rec = get(t, h, "/", nil)
	var idx struct {
		Endpoints []string `json:"endpoints"`
		Pprof     bool     `json:"pprof"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idx))
	assert.Equal(t, []string{"state"}, idx.Endpoints)
	assert.False(t, idx.Pprof)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/pprof/", nil).Code)
}

func TestHandlerPprof(t *testing.T) {
	s := New(Config{Enabled: true, Pprof: true}, logx.Nop())
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/debug/pprof/", nil).Code)
}

func TestHandlerToken(t *testing.T) {
	s := New(Config{Enabled: true, Token: "s3cret"}, logx.Nop())
	h := s.Handler()

	rec := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz?token=s3cret", nil).Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz", map[string]string{"Authorization": "Bearer s3cret"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/healthz", map[string]string{"Authorization": "Bearer nope"}).Code)
}

func TestCheckBind(t *testing.T) {
	assert.NoError(t, checkBind("127.0.0.1:0", Config{}))
	assert.NoError(t, checkBind("localhost:6061", Config{}))
	assert.NoError(t, checkBind("[::1]:6061", Config{}))
	assert.ErrorIs(t, checkBind(":6061", Config{}), ErrInsecureBind)
	assert.ErrorIs(t, checkBind("0.0.0.0:6061", Config{}), ErrInsecureBind)
	assert.NoError(t, checkBind("0.0.0.0:6061", Config{Token: "x"}))
	assert.NoError(t, checkBind("0.0.0.0:6061", Config{AllowInsecure: true}))
}

func TestStartServeStop(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	s.Handle("state", func() any { return "ok" })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	assert.Empty(t, s.Addr())

	s.Reconfigure(ctx, Config{Enabled: false})
	assert.False(t, s.Enabled())
	assert.Empty(t, s.Addr())
}
