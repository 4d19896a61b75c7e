package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/vaskular/vaskular-backend/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    switch {
    case cw.limit <= 0:
        cw.buf.Write(b)
    case cw.size < cw.limit:
        remain := cw.limit - cw.size
        if int64(len(b)) <= remain {
            cw.buf.Write(b)
        } else {
            cw.buf.Write(b[:remain])
        }
    }
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// ResponseCache stores successful responses in Redis so repeated history
// reads skip the database.  Every key embeds the path's generation number,
// read before the handler runs; Invalidate bumps the generation, so a
// response computed before a write is never served after it.  A
// ResponseCache with a nil client is a no-op.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
}

// NewResponseCache returns a cache using rdb.  rdb may be nil.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = 5 * time.Minute
    }
    return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

// pathKey is the key prefix shared by every variant of one request path.
func (rc *ResponseCache) pathKey(path string) string {
    sum := sha1.Sum([]byte(path))
    return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

// genKey holds the generation counter of one request path.
func (rc *ResponseCache) genKey(path string) string {
    sum := sha1.Sum([]byte(path))
    return fmt.Sprintf("%s:gen:%x", rc.cfg.Prefix, sum[:])
}

// generation returns the current generation of path, zero if never bumped.
func (rc *ResponseCache) generation(ctx context.Context, path string) (int64, error) {
    n, err := rc.rdb.Get(ctx, rc.genKey(path)).Int64()
    if errors.Is(err, redis.Nil) {
        return 0, nil
    }
    return n, err
}

// keyFor builds a stable cache key: the path prefix plus a hash of the
// generation and whatever else the key strategy includes.
func (rc *ResponseCache) keyFor(method, path, query string, gen int64) string {
    parts := []string{"gen", strconv.FormatInt(gen, 10)}
    switch strings.ToLower(rc.cfg.KeyStrategy) {
    case "path":
    case "method_path":
        parts = append(parts, "method", method)
    case "method_path_query":
        parts = append(parts, "method", method, "q", query)
    default: // "path_query"
        parts = append(parts, "q", query)
    }
    sum := sha1.Sum([]byte(strings.Join(parts, ":")))
    return fmt.Sprintf("%s:%x", rc.pathKey(path), sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    copy(out[8:8+len(hdrJSON)], hdrJSON)
    copy(out[8+len(hdrJSON):], body)
    return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// Middleware serves cached 200 responses and records new ones.  Cache hits
// and misses are reported in the X-Cache header.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    maxBody := int64(rc.cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            r := c.Request()
            if !rc.cfg.Methods[strings.ToUpper(r.Method)] {
                return next(c)
            }
            ctx := r.Context()
            gen, err := rc.generation(ctx, r.URL.Path)
            if err != nil {
                // without a generation a stored entry could outlive a write
                return next(c)
            }
            key := rc.keyFor(r.Method, r.URL.Path, r.URL.RawQuery, gen)

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        // Content-Length is recomputed by the server
                        if strings.EqualFold(k, "Content-Length") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            // truncated bodies are never stored
            if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
                return nil
            }
            hdr := c.Response().Header().Clone()
            hdr.Del("X-Cache")
            if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
                _ = rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err()
            }
            return nil
        }
    }
}

// Invalidate bumps the generation of each request path, which retires every
// cached variant including ones still being computed, then deletes the
// retired entries.
func (rc *ResponseCache) Invalidate(ctx context.Context, paths ...string) error {
    if !rc.enabled() {
        return nil
    }
    for _, p := range paths {
        if err := rc.rdb.Incr(ctx, rc.genKey(p)).Err(); err != nil {
            log.Printf("cache: bump generation of %s failed: %v", p, err)
            return err
        }
        iter := rc.rdb.Scan(ctx, 0, rc.pathKey(p)+":*", 100).Iterator()
        var keys []string
        for iter.Next(ctx) {
            keys = append(keys, iter.Val())
        }
        if err := iter.Err(); err != nil {
            log.Printf("cache: scan %s failed: %v", p, err)
            return err
        }
        if len(keys) == 0 {
            continue
        }
        if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
            log.Printf("cache: delete %s failed: %v", p, err)
            return err
        }
    }
    return nil
}
