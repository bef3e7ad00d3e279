package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/GoRAG/internal/handlers"
	"github.com/akolanti/GoRAG/internal/metrics"
	"github.com/akolanti/GoRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var WelcomeHandler = Wrap(handlers.WelcomeHandler)
var UploadHandler = Wrap(handlers.UploadHandler)
var ProcessHandler = Wrap(handlers.ProcessHandler)
var ReembedHandler = Wrap(handlers.ReembedHandler)
var AssetsHandler = Wrap(handlers.AssetsHandler)
var ChatHandler = Wrap(handlers.ChatHandler)

// status polling is cheap and frequent, so it skips the rate limiter
var GetStatusHandler = wrap(handlers.GetStatusHandler, false)

var middlewareLogger = logger_i.NewLogger("middleware")

// Wrap runs trace injection, auth and rate limiting before next, and counts the response status.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

func wrap(next http.HandlerFunc, limited bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
		}()

		re := processRequest(requestResponseStruct{req: r, writer: rec}, limited)
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)
	}
}

func processRequest(re requestResponseStruct, limited bool) requestResponseStruct {
	re.logger = middlewareLogger
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Info("New request received", "method", re.req.Method, "path", re.req.URL.Path)

	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	if !limited {
		return re
	}
	return rateLimiter(re)
}
