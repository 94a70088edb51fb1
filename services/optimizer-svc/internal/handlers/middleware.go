package handlers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"routeopt/pkg/audit"
	"routeopt/pkg/config"
	"routeopt/pkg/logger"
	"routeopt/pkg/metrics"
	"routeopt/pkg/passhash"
	"routeopt/pkg/ratelimit"
)

type ctxKey int

const requestIDKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

// RequestIDFrom возвращает request ID из контекста
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID притягивает заголовок X-Request-ID или генерирует новый
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusWriter запоминает код ответа для логов и метрик
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Logging пишет access-лог каждого запроса
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		logger.WithRequestID(RequestIDFrom(r.Context())).Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", clientIP(r),
		)
	})
}

// MetricsMiddleware записывает Prometheus-метрики по шаблону маршрута,
// чтобы не плодить серии по конкретным ID
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		m := metrics.Get()
		m.HTTPRequestsInFlight.Inc()
		next.ServeHTTP(sw, r)
		m.HTTPRequestsInFlight.Dec()

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		m.RecordHTTPRequest(r.Method, path, strconv.Itoa(sw.status), time.Since(start))
	})
}

// Recover перехватывает панику обработчика и отвечает 500
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic",
					"panic", fmt.Sprintf("%v", rec),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestIDFrom(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS добавляет CORS-заголовки согласно конфигурации
func CORS(cfg config.CORSConfig) mux.MiddlewareFunc {
	if !cfg.Enabled {
		return passthrough
	}

	allowedHeaders := prepareAllowedHeaders(cfg.AllowedHeaders)
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	exposedHeaders := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowedOrigin := ""
			for _, o := range cfg.AllowedOrigins {
				if o == "*" {
					allowedOrigin = "*"
					break
				}
				if o == origin {
					allowedOrigin = origin
					break
				}
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			}
			w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
			if exposedHeaders != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposedHeaders)
			}
			if cfg.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			// Preflight
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Max-Age", maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// prepareAllowedHeaders раскрывает wildcard в конкретный список,
// потому что браузеры не включают Authorization при "*"
func prepareAllowedHeaders(headers []string) string {
	for _, h := range headers {
		if h == "*" {
			return strings.Join([]string{
				"Accept",
				"Accept-Language",
				"Content-Language",
				"Content-Type",
				"Authorization",
				"Origin",
				"X-Requested-With",
				"X-API-Key",
				"X-Request-ID",
				"X-Solve-Name",
			}, ", ")
		}
	}

	hasAuth := false
	for _, h := range headers {
		if strings.EqualFold(h, "Authorization") {
			hasAuth = true
			break
		}
	}
	if !hasAuth {
		headers = append(headers, "Authorization")
	}

	return strings.Join(headers, ", ")
}

// Auth проверяет Bearer JWT либо X-API-Key (argon2id-хеши из конфигурации).
// При выключенной аутентификации пропускает всё.
func Auth(cfg config.AuthConfig) mux.MiddlewareFunc {
	if !cfg.Enabled {
		return passthrough
	}

	jwtManager := passhash.NewJWTManager(&passhash.JWTConfig{
		SecretKey:          cfg.JWTSecret,
		AccessTokenExpiry:  cfg.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.RefreshTokenExpiry,
		Issuer:             cfg.Issuer,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if _, err := jwtManager.ValidateToken(token); err != nil {
					writeError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get("X-API-Key"); key != "" {
				for _, hash := range cfg.APIKeyHashes {
					ok, err := passhash.VerifyPassword(key, hash)
					if err == nil && ok {
						next.ServeHTTP(w, r)
						return
					}
				}
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			writeError(w, http.StatusUnauthorized, "authentication required")
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):], true
	}
	return "", false
}

// RateLimit ограничивает частоту запросов по IP клиента
func RateLimit(cfg config.RateLimitConfig) mux.MiddlewareFunc {
	if !cfg.Enabled {
		return passthrough
	}

	limiter, err := ratelimit.New(&ratelimit.Config{
		Requests:        cfg.Requests,
		Window:          cfg.Window,
		Strategy:        cfg.Strategy,
		Backend:         cfg.Backend,
		BurstSize:       cfg.BurstSize,
		CleanupInterval: cfg.CleanupInterval,
		RedisAddr:       cfg.RedisAddr,
	})
	if err != nil {
		logger.Error("rate limiter init failed, falling back to memory", "error", err)
		limiter = ratelimit.NewMemoryLimiter(&ratelimit.Config{
			Requests: cfg.Requests,
			Window:   cfg.Window,
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				// Недоступность лимитера не должна ронять API
				logger.Warn("rate limiter check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Audit пишет запись аудита для изменяющих запросов
func Audit(serviceName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			outcome := audit.OutcomeSuccess
			if sw.status >= http.StatusBadRequest {
				outcome = audit.OutcomeFailure
			}

			entry := audit.NewEntry().
				Service(serviceName).
				Method(r.Method + " " + r.URL.Path).
				Action(auditAction(r)).
				Outcome(outcome).
				Client(clientIP(r), r.UserAgent()).
				RequestID(RequestIDFrom(r.Context())).
				Duration(time.Since(start)).
				Meta("status", sw.status).
				Build()

			if err := audit.Log(r.Context(), entry); err != nil {
				logger.Warn("audit log failed", "error", err)
			}
		})
	}
}

func auditAction(r *http.Request) audit.Action {
	switch r.Method {
	case http.MethodDelete:
		return audit.ActionDelete
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return audit.ActionSolve
	default:
		return audit.ActionRead
	}
}

// clientIP извлекает IP клиента с учётом прокси
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func passthrough(next http.Handler) http.Handler {
	return next
}
