package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func passing(_ context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

type report struct {
	Status string
	Checks map[string]string
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) report {
	t.Helper()

	p := report{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "status":
			s, err := d.Str()
			p.Status = s
			return err
		case "checks":
			return d.ObjBytes(func(d *jx.Decoder, name []byte) error {
				msg, err := d.Str()
				p.Checks[string(name)] = msg
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return p
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// --- Tests ---

func TestLiveEndpoint(t *testing.T) {
	t.Run("passing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("a", time.Second, passing)

		w := serve(h.LiveEndpoint)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "ok", decodeReport(t, w).Status)
	})

	t.Run("below failure threshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failing("temporary"))
		h.liveness[0].run(context.Background())
		h.liveness[0].run(context.Background())

		assert.Equal(t, http.StatusOK, serve(h.LiveEndpoint).Code)
	})

	t.Run("failing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, failing("connection refused"))
		for range failureThreshold {
			h.liveness[0].run(context.Background())
		}

		w := serve(h.LiveEndpoint)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		p := decodeReport(t, w)
		assert.Equal(t, "unhealthy", p.Status)
		assert.Equal(t, "connection refused", p.Checks["db"])
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready", func(t *testing.T) {
		h := New()

		w := serve(h.ReadyEndpoint)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, decodeReport(t, w).Checks, "_readiness")
	})

	t.Run("ready", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passing)
		h.SetReady(true)

		assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	})

	t.Run("draining", func(t *testing.T) {
		h := New()
		h.SetReady(true)
		h.SetReady(false)

		assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
	})

	t.Run("one check failing", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("postgres", time.Second, passing)
		h.AddReadinessCheck("redis", time.Second, failing("READONLY"))
		h.SetReady(true)
		for _, c := range h.readiness {
			for range failureThreshold {
				c.run(context.Background())
			}
		}

		w := serve(h.ReadyEndpoint)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		p := decodeReport(t, w)
		assert.Equal(t, map[string]string{"redis": "READONLY"}, p.Checks)
		assert.False(t, h.IsReady())
	})
}

func TestCheckRecovers(t *testing.T) {
	down := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	c := h.liveness[0]
	assert.NoError(t, c.err())

	for range failureThreshold {
		c.run(context.Background())
	}
	assert.False(t, c.healthy.Load())
	assert.EqualError(t, c.err(), "down")

	down = false
	c.run(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failing("err"))
	h.AddReadinessCheck("ready", time.Second, passing)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				serve(h.LiveEndpoint)
				serve(h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()
	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(fakePinger{})(context.Background()))
	assert.Error(t, PingCheck(fakePinger{err: errors.New("closed pool")})(context.Background()))
}

func TestRedisCheck(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	assert.NoError(t, RedisCheck(rdb)(context.Background()))
	assert.ErrorContains(t, RedisCheck(rdb)(context.Background()), "redis ping")
	assert.NoError(t, mock.ExpectationsWereMet())
}
