package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/convergence"
	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/testutil/mocks"
	"github.com/BaSui01/migrationflow/types"
)

var testCreds = convergence.Credentials{AccessKeyID: "AKIA1", SecretAccessKey: "secret", SessionToken: "tok"}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(srv.URL, 5*time.Second, WithHTTPClient(srv.Client()), WithLogger(zap.NewNop()))
}

func TestGateway_DescribeSourceServers(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/replication/describe", r.URL.Path)
		assert.Equal(t, "AKIA1", r.Header.Get("X-Access-Key-Id"))
		assert.Equal(t, "tok", r.Header.Get("X-Session-Token"))
		assert.Equal(t, "req-7", r.Header.Get("X-Request-ID"))

		var req describeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, describeRequest{AccountID: "111122223333", Region: "eu-west-1", IDs: []string{"s-1", "s-2"}}, req)

		_, _ = w.Write([]byte(`{"items":[
			{"sourceServerID":"s-1","isArchived":false,"dataReplicationInfo":{"dataReplicationState":"CONTINUOUS"}},
			{"sourceServerID":"s-2","isArchived":true}
		]}`))
	})

	ctx := ctxkeys.WithRequestID(context.Background(), "req-7")
	items, err := g.DescribeSourceServers(ctx, testCreds, "111122223333", "eu-west-1", []string{"s-1", "s-2"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "CONTINUOUS", items[0].DataReplicationInfo.DataReplicationState)
	assert.True(t, items[1].IsArchived)
}

func TestGateway_ReplicationFetcherKeysByProviderID(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req describeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// 没有 ProviderID 的目标不参与查询
		assert.Equal(t, []string{"s-1"}, req.IDs)
		_, _ = w.Write([]byte(`{"items":[{"sourceServerID":"s-1","dataReplicationInfo":{"dataReplicationState":"INITIATING"}}]}`))
	})

	group := convergence.Group{AccountID: "a", Region: "r", Targets: []convergence.Target{
		{ID: "srv-1", ProviderID: "s-1"},
		{ID: "srv-2"},
	}}
	got, err := g.ReplicationFetcher().Fetch(context.Background(), testCreds, group)
	require.NoError(t, err)
	require.Contains(t, got, "s-1")
	assert.Len(t, got, 1)
}

func TestGateway_InstanceFetcher(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/instances/describe", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[{"instanceId":"i-1","instanceState":"running","systemStatus":"ok","instanceStatus":"ok"}]}`))
	})

	group := convergence.Group{Targets: []convergence.Target{{ID: "srv-1", ProviderID: "i-1"}}}
	got, err := g.InstanceFetcher().Fetch(context.Background(), testCreds, group)
	require.NoError(t, err)
	assert.Equal(t, "running", got["i-1"].State)
}

func TestGateway_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      types.ErrorCode
		retryable bool
		message   string
	}{
		{name: "unauthorized", status: 401, body: `{"message":"expired token"}`, code: types.ErrAccessDenied, message: "expired token"},
		{name: "forbidden", status: 403, body: `{"error":{"message":"not allowed"}}`, code: types.ErrAccessDenied, message: "not allowed"},
		{name: "throttled", status: 429, body: "slow down", code: types.ErrRateLimited, retryable: true, message: "slow down"},
		{name: "server error", status: 502, code: types.ErrUpstreamError, retryable: true, message: "Bad Gateway"},
		{name: "gateway timeout", status: 504, code: types.ErrUpstreamTimeout, retryable: true},
		{name: "bad request", status: 400, body: `{"message":"bad ids"}`, code: types.ErrInvalidRequest, message: "bad ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := g.DescribeInstances(context.Background(), testCreds, "a", "r", []string{"i-1"})
			require.Error(t, err)
			e, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, GatewayName, e.Provider)
			if tt.message != "" {
				assert.Equal(t, tt.message, e.Message)
			}
		})
	}
}

func TestGateway_InvalidJSON(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":`))
	})
	_, err := g.DescribeSourceServers(context.Background(), testCreds, "a", "r", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
}

func TestGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewGateway(url, time.Second)
	_, err := g.DescribeSourceServers(context.Background(), testCreds, "a", "r", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrProviderUnavailable))
	assert.True(t, types.IsRetryable(err))
}

type upstreamCalls struct {
	statuses []int
}

func (u *upstreamCalls) RecordUpstreamRequest(upstream, operation string, status int, _ time.Duration) {
	u.statuses = append(u.statuses, status)
}

func TestGateway_RecordsUpstreamRequests(t *testing.T) {
	rec := &upstreamCalls{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL, time.Second, WithRecorder(rec))
	_, err := g.DescribeInstances(context.Background(), testCreds, "a", "r", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{200}, rec.statuses)
}

func TestGateway_RateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(srv.Close)

	g := NewGateway(srv.URL, time.Second, WithRateLimit(0.001, 1))
	_, err := g.DescribeInstances(context.Background(), testCreds, "a", "r", nil)
	require.NoError(t, err)

	// 令牌耗尽，第二次调用在截止时间前无法获得令牌
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.DescribeInstances(ctx, testCreds, "a", "r", nil)
	assert.True(t, types.IsErrorCode(err, types.ErrRateLimited))
	assert.Equal(t, int32(1), calls.Load())
}

// =============================================================================
// 🧪 Broker 测试
// =============================================================================

func TestBroker_AcquireExchangesEveryCall(t *testing.T) {
	expiry := time.Date(2024, 3, 1, 12, 15, 0, 0, time.UTC)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/v1/credentials", r.URL.Path)
		var req credentialRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, credentialRequest{AccountID: "111122223333", Region: "us-east-1"}, req)

		_ = json.NewEncoder(w).Encode(credentialResponse{
			AccessKeyID:     fmt.Sprintf("AKIA%d", n),
			SecretAccessKey: "s",
			SessionToken:    "t",
			Expiration:      expiry,
		})
	}))
	t.Cleanup(srv.Close)

	b := NewBroker(srv.URL, time.Second)

	first, err := b.Acquire(context.Background(), "111122223333", "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "AKIA1", first.AccessKeyID)
	assert.Equal(t, expiry, first.Expiry)

	// 凭据仍在有效期内，也重新换取
	second, err := b.Acquire(context.Background(), "111122223333", "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "AKIA2", second.AccessKeyID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBroker_PollerAcquiresEveryRound(t *testing.T) {
	for _, withExpiry := range []bool{true, false} {
		t.Run(fmt.Sprintf("expiry=%v", withExpiry), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				resp := credentialResponse{AccessKeyID: "AKIA", SecretAccessKey: "s", SessionToken: "t"}
				if withExpiry {
					resp.Expiration = time.Now().Add(time.Hour)
				}
				_ = json.NewEncoder(w).Encode(resp)
			}))
			t.Cleanup(srv.Close)

			var seen []string
			fetch := convergence.FetchFunc[convergence.SourceServer](func(_ context.Context, creds convergence.Credentials, g convergence.Group) (map[string]convergence.SourceServer, error) {
				seen = append(seen, creds.AccessKeyID)
				return map[string]convergence.SourceServer{
					"s-1": {SourceServerID: "s-1", DataReplicationInfo: &convergence.DataReplicationInfo{
						DataReplicationState: convergence.ReplicationInitiating,
					}},
				}, nil
			})

			clock := mocks.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
			p := convergence.NewPoller(
				convergence.Config{Name: "replication", Delay: 10 * time.Second, Timeout: 35 * time.Second},
				NewBroker(srv.URL, time.Second),
				fetch,
				convergence.ClassifyReplication,
				mocks.NewRecordingWriter(),
				convergence.WithClock(clock),
			)

			out, err := p.Run(context.Background(), []convergence.Group{{
				AccountID: "111122223333",
				Region:    "us-east-1",
				Targets:   []convergence.Target{{ID: "srv-1", ProviderID: "s-1"}},
			}})
			require.NoError(t, err)
			assert.Equal(t, convergence.OutcomeTimeout, out.Kind)
			assert.Equal(t, 5, out.Rounds)
			assert.Equal(t, int32(out.Rounds), calls.Load())
			assert.Len(t, seen, out.Rounds)
		})
	}
}

func TestBroker_Errors(t *testing.T) {
	t.Run("access denied", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		t.Cleanup(srv.Close)

		_, err := NewBroker(srv.URL, time.Second).Acquire(context.Background(), "a", "r")
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, types.ErrAccessDenied, e.Code)
		assert.Equal(t, BrokerName, e.Provider)
	})

	t.Run("empty credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		t.Cleanup(srv.Close)

		_, err := NewBroker(srv.URL, time.Second).Acquire(context.Background(), "a", "r")
		assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
	})
}
