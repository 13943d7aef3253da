package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	headerUserID    = "X-User-Id"
	headerUserRole  = "X-User-Role"
	headerUserEmail = "X-User-Email"
	headerRequestID = "X-Request-Id"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyIdentity
)

// RequestIDFromContext возвращает request id текущего запроса.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// IdentityFromContext возвращает личность вызывающего, если шлюз её передал.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	v, _ := ctx.Value(ctxKeyIdentity).(*domain.Identity)
	return v
}

// WithIdentity извлекает личность из заголовков шлюза. Запросы без
// X-User-Id проходят дальше с nil-личностью: отказ отдаёт authz-слой,
// чтобы коды ошибок были едиными.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity := &domain.Identity{
			ID:    userID,
			Email: r.Header.Get(headerUserEmail),
			Role:  domain.NormalizeRole(r.Header.Get(headerUserRole)),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, identity)))
	})
}

// WithRequestID прокидывает X-Request-Id или генерирует новый.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(headerRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// WithLogging логирует каждый запрос со статусом и латентностью.
func WithLogging(logger *log.Entry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     sr.status,
			"bytes":      sr.bytes,
			"latency_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id": RequestIDFromContext(r.Context()),
		}).Info("http request")
	})
}
