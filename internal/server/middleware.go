package server

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/apfuzz/internal/activity"
	"github.com/roach88/apfuzz/internal/corpus"
	"github.com/roach88/apfuzz/internal/delivery"
	"github.com/roach88/apfuzz/internal/httpsig"
	"github.com/roach88/apfuzz/internal/placeholder"
	"github.com/roach88/apfuzz/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second

	// contentTypeKey holds the media type activityJSON negotiated.
	contentTypeKey = "apfuzz.contentType"
)

// cors allows any origin to read the public documents.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

// activityJSON answers with application/activity+json when the client
// accepts ActivityPub JSON, and plain JSON otherwise.
func activityJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		ct := "application/json; charset=utf-8"
		if acceptsActivityJSON(c.GetHeader("Accept")) {
			ct = activity.MediaTypeActivityJSON
		}
		c.Set(contentTypeKey, ct)
		c.Next()
	}
}

func acceptsActivityJSON(accept string) bool {
	if strings.TrimSpace(accept) == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "*/*", "application/*", activity.MediaTypeActivityJSON, "application/ld+json":
			return true
		}
	}
	return false
}

// isActivityJSON reports whether a request body is ActivityPub JSON.
func isActivityJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == activity.MediaTypeActivityJSON || mt == "application/ld+json"
}

// writeJSONText writes an already encoded document.
func writeJSONText(c *gin.Context, status int, doc string) {
	ct := c.GetString(contentTypeKey)
	if ct == "" {
		ct = "application/json; charset=utf-8"
	}
	c.Data(status, ct, []byte(doc))
}

// writeDoc encodes v without HTML escaping.
func writeDoc(c *gin.Context, status int, v any) {
	data, err := placeholder.Marshal(v)
	if err != nil {
		respondError(c, err)
		return
	}
	writeJSONText(c, status, string(data))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, placeholder.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, corpus.ErrNoEligible):
		return http.StatusNotFound
	case errors.Is(err, delivery.ErrNoTarget):
		return http.StatusBadRequest
	case errors.Is(err, delivery.ErrDeliveryFailure):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, httpsig.ErrNoPrivateKey):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
