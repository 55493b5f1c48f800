package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-service/internal/domain"
)

const userContextKey = "user"

// requireSession resolves the access_token cookie and stores the user on the context.
func (h *Handler) requireSession(c *gin.Context) {
	raw, _ := c.Cookie(accessTokenCookie)

	user, err := h.sessions.Resolve(c.Request.Context(), raw)
	if err != nil {
		h.writeError(c, err)
		c.Abort()
		return
	}

	c.Set(userContextKey, user)
	c.Next()
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userContextKey).(*domain.User)
}

// timedWriter stamps X-Process-Time right before the header is flushed.
type timedWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *timedWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	elapsed := time.Since(w.start).Seconds()
	w.Header().Set("X-Process-Time", strconv.FormatFloat(elapsed, 'f', -1, 64))
}

func (w *timedWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timedWriter) WriteHeaderNow() {
	w.stamp()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *timedWriter) Write(data []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(data)
}

func (w *timedWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

func requestTimer(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		writer := &timedWriter{ResponseWriter: c.Writer, start: start}
		c.Writer = writer

		c.Next()

		writer.stamp()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		}).Info("request handled")
	}
}
