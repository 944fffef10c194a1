package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodex/dex-gossip/dex"
)

func newTestServer() (*Server, *dex.Engine) {
	e := dex.NewEngineSized(16, 64)
	return NewServer(e, ":0", true), e
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest("GET", "/api/v1/dex/health", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestBroadcastThenList(t *testing.T) {
	s, _ := newTestServer()

	reqBody := `{"priority":0,"tagA":"btc","tagB":"usd","volA":"1.0","volB":"50000"}`
	req := httptest.NewRequest("POST", "/api/v1/dex/broadcast", strings.NewReader(reqBody))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var broadcastResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &broadcastResp))
	assert.Greater(t, broadcastResp["bytes_sent"], float64(0))

	listReq := httptest.NewRequest("GET", "/api/v1/dex/list?tagA=btc&tagB=usd", nil)
	listRR := httptest.NewRecorder()
	s.router.ServeHTTP(listRR, listReq)
	require.Equal(t, http.StatusOK, listRR.Code)

	var listResp ListResponse
	require.NoError(t, json.Unmarshal(listRR.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.N)
	require.Len(t, listResp.Matches, 1)
	assert.EqualValues(t, 100000000, listResp.Matches[0].AmountA)
}

func TestBroadcastInvalidBodyRejected(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest("POST", "/api/v1/dex/broadcast", strings.NewReader("not json"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsEndpointReflectsBroadcast(t *testing.T) {
	s, e := newTestServer()
	_, err := e.Broadcast(1000, 0, "", "x", "y", "", "0", "0")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/dex/stats", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats dex.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats.TotalAdd)
}
