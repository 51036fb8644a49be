package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oasistrek/tourops-api/pkg/config"
	"github.com/oasistrek/tourops-api/pkg/middleware/requestid"
)

// New builds the application logger. Production gets sampled JSON output,
// everything else gets a human readable development config.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Log.Format == "console" {
		zc.Encoding = "console"
	} else {
		zc.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zc.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zc.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// GinMiddleware logs one line per request. Server errors log at error level
// and client errors at warn so alerting can key off severity.
func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if id := requestid.Value(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			l.Error("http_request", fields...)
		case status >= 400:
			l.Warn("http_request", fields...)
		default:
			l.Info("http_request", fields...)
		}
	}
}
