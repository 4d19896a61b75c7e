package middleware

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vaskular/vaskular-backend/internal/config"
)

func testCacheConfig(strategy string) config.CacheConfig {
    return config.CacheConfig{
        Enabled:     true,
        Methods:     map[string]bool{"GET": true},
        KeyStrategy: strategy,
        Prefix:      "cache",
    }
}

func TestKeyFor_SharesPathPrefix(t *testing.T) {
    rc := NewResponseCache(testCacheConfig("path_query"), nil)

    a := rc.keyFor("GET", "/get_history/u1", "", 0)
    b := rc.keyFor("GET", "/get_history/u1", "x=1", 0)
    other := rc.keyFor("GET", "/get_history/u2", "", 0)

    assert.NotEqual(t, a, b)
    assert.True(t, strings.HasPrefix(a, rc.pathKey("/get_history/u1")+":"))
    assert.True(t, strings.HasPrefix(b, rc.pathKey("/get_history/u1")+":"))
    assert.False(t, strings.HasPrefix(other, rc.pathKey("/get_history/u1")+":"))
    assert.Equal(t, a, rc.keyFor("GET", "/get_history/u1", "", 0), "keys are stable")
    assert.NotEqual(t, a, rc.keyFor("GET", "/get_history/u1", "", 1), "generation is part of the key")
    assert.NotEqual(t, rc.genKey("/get_history/u1"), rc.pathKey("/get_history/u1"))
    assert.False(t, strings.HasPrefix(rc.genKey("/get_history/u1"), rc.pathKey("/get_history/u1")+":"))
}

func TestKeyFor_Strategies(t *testing.T) {
    path := NewResponseCache(testCacheConfig("path"), nil)
    assert.Equal(t, path.keyFor("GET", "/p", "a=1", 0), path.keyFor("HEAD", "/p", "b=2", 0))

    method := NewResponseCache(testCacheConfig("method_path"), nil)
    assert.NotEqual(t, method.keyFor("GET", "/p", "", 0), method.keyFor("HEAD", "/p", "", 0))
    assert.Equal(t, method.keyFor("GET", "/p", "a=1", 0), method.keyFor("GET", "/p", "b=2", 0))

    all := NewResponseCache(testCacheConfig("method_path_query"), nil)
    assert.NotEqual(t, all.keyFor("GET", "/p", "a=1", 0), all.keyFor("GET", "/p", "b=2", 0))
}

func TestPayloadRoundTrip(t *testing.T) {
    hdr := http.Header{"Content-Type": {"application/json"}, "X-Request-Id": {"abc"}}
    body := []byte(`{"history":[]}`)

    bs, err := encodePayload(http.StatusOK, hdr, body)
    require.NoError(t, err)

    status, gotHdr, gotBody, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, http.StatusOK, status)
    assert.Equal(t, hdr, gotHdr)
    assert.Equal(t, body, gotBody)
}

func TestDecodePayload_RejectsShortOrCorrupt(t *testing.T) {
    _, _, _, ok := decodePayload([]byte{0, 0, 0})
    assert.False(t, ok)

    // header length points past the end
    _, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0, '{'})
    assert.False(t, ok)
}

func TestResponseCache_DisabledWithoutRedis(t *testing.T) {
    rc := NewResponseCache(testCacheConfig("path_query"), nil)
    assert.NoError(t, rc.Invalidate(context.Background(), "/get_history/u1"))

    calls := 0
    e := echo.New()
    e.GET("/x", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "fresh")
    }, rc.Middleware())

    for i := 0; i < 2; i++ {
        rec := httptest.NewRecorder()
        e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
        assert.Equal(t, "fresh", rec.Body.String())
        assert.Empty(t, rec.Header().Get("X-Cache"))
    }
    assert.Equal(t, 2, calls)
}

func TestCaptureWriter_Limit(t *testing.T) {
    rec := httptest.NewRecorder()
    cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

    _, _ = cw.Write([]byte("abc"))
    _, _ = cw.Write([]byte("defg"))

    assert.Equal(t, "abcd", cw.buf.String())
    assert.Equal(t, int64(7), cw.size)
    assert.Equal(t, "abcdefg", rec.Body.String(), "client still gets the full body")
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
    t.Helper()
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })
    return mr, rdb
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
    return rec
}

func TestResponseCache_StoresAndServes200(t *testing.T) {
    _, rdb := newTestRedis(t)
    cfg := testCacheConfig("path_query")
    cfg.TTL = time.Minute
    rc := NewResponseCache(cfg, rdb)

    calls := 0
    e := echo.New()
    e.GET("/get_history/:user_id", func(c echo.Context) error {
        calls++
        return c.JSON(http.StatusOK, echo.Map{"history": []int{calls}})
    }, rc.Middleware())

    first := get(e, "/get_history/u1")
    require.Equal(t, http.StatusOK, first.Code)
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

    second := get(e, "/get_history/u1")
    require.Equal(t, http.StatusOK, second.Code)
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.JSONEq(t, first.Body.String(), second.Body.String())
    assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))
    assert.Equal(t, 1, calls)

    other := get(e, "/get_history/u2")
    assert.Equal(t, "MISS", other.Header().Get("X-Cache"), "users never share entries")
    assert.Equal(t, 2, calls)
}

func TestResponseCache_SkipsNon200(t *testing.T) {
    for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway} {
        t.Run(http.StatusText(status), func(t *testing.T) {
            mr, rdb := newTestRedis(t)
            rc := NewResponseCache(testCacheConfig("path_query"), rdb)

            calls := 0
            e := echo.New()
            e.GET("/get_history/:user_id", func(c echo.Context) error {
                calls++
                return c.JSON(status, echo.Map{"detail": "No health data found"})
            }, rc.Middleware())

            for i := 0; i < 2; i++ {
                rec := get(e, "/get_history/u1")
                assert.Equal(t, status, rec.Code)
                assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
            }
            assert.Equal(t, 2, calls)
            assert.Empty(t, mr.Keys())
        })
    }
}

func TestResponseCache_InvalidateDropsEntries(t *testing.T) {
    mr, rdb := newTestRedis(t)
    rc := NewResponseCache(testCacheConfig("path_query"), rdb)

    calls := 0
    e := echo.New()
    e.GET("/get_history/:user_id", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "v"+c.Param("user_id"))
    }, rc.Middleware())

    get(e, "/get_history/u1")
    get(e, "/get_history/u1?page=2")
    get(e, "/get_history/u2")
    require.Equal(t, 3, calls)
    require.Len(t, mr.Keys(), 3)

    require.NoError(t, rc.Invalidate(context.Background(), "/get_history/u1"))

    // only the generation counter of u1 and the u2 entry remain
    assert.Len(t, mr.Keys(), 2)
    assert.True(t, mr.Exists(rc.genKey("/get_history/u1")))

    assert.Equal(t, "MISS", get(e, "/get_history/u1").Header().Get("X-Cache"))
    assert.Equal(t, "HIT", get(e, "/get_history/u2").Header().Get("X-Cache"))
    assert.Equal(t, 4, calls)
}

func TestResponseCache_WriteDuringReadIsNotServedLater(t *testing.T) {
    _, rdb := newTestRedis(t)
    rc := NewResponseCache(testCacheConfig("path_query"), rdb)

    // the store gains a record while the first read is still in flight
    records := 1
    inFlight := true
    e := echo.New()
    e.GET("/get_history/:user_id", func(c echo.Context) error {
        seen := records
        if inFlight {
            inFlight = false
            records++
            require.NoError(t, rc.Invalidate(c.Request().Context(), "/get_history/u1"))
        }
        return c.JSON(http.StatusOK, echo.Map{"records": seen})
    }, rc.Middleware())

    stale := get(e, "/get_history/u1")
    assert.JSONEq(t, `{"records":1}`, stale.Body.String())

    fresh := get(e, "/get_history/u1")
    assert.Equal(t, "MISS", fresh.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"records":2}`, fresh.Body.String())

    assert.Equal(t, "HIT", get(e, "/get_history/u1").Header().Get("X-Cache"))
}

func TestResponseCache_BypassedWhenRedisFails(t *testing.T) {
    mr, rdb := newTestRedis(t)
    rc := NewResponseCache(testCacheConfig("path_query"), rdb)

    calls := 0
    e := echo.New()
    e.GET("/x", func(c echo.Context) error {
        calls++
        return c.String(http.StatusOK, "fresh")
    }, rc.Middleware())

    mr.Close()
    for i := 0; i < 2; i++ {
        rec := get(e, "/x")
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, "fresh", rec.Body.String())
        assert.Empty(t, rec.Header().Get("X-Cache"))
    }
    assert.Equal(t, 2, calls)
    assert.Error(t, rc.Invalidate(context.Background(), "/x"))
}
