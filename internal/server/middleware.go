package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var errMissingBearer = errors.New("missing bearer token")

// observability records request metrics labelled by route pattern so path
// parameters don't explode label cardinality.
func (s *Server) observability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := routePattern(r)
		elapsed := time.Since(start)
		s.metrics.RecordHTTP(r.Method, route, strconv.Itoa(ww.Status()), elapsed.Seconds())

		s.logger.Ctx(r.Context()).Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// adminAuth requires an HS256 bearer token when a secret is configured.
func (s *Server) adminAuth(next http.Handler) http.Handler {
	if s.cfg.AdminJWTSecret == "" {
		return next
	}
	secret := []byte(s.cfg.AdminJWTSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifyBearer(r.Header.Get("Authorization"), secret); err != nil {
			s.logger.Ctx(r.Context()).Warn("Rejected admin request",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeError(w, r, s.logger, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func verifyBearer(header string, secret []byte) error {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return errMissingBearer
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenSignatureInvalid
	}
	return nil
}
