package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/akolanti/JournalRAG/internal/adapter/utils"
	"github.com/akolanti/JournalRAG/internal/handlers"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
)

const traceHeader = "X-Trace-Id"

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusBadRequest,
			errorMessage: "request is empty",
		}
		return re
	}
	trace := req.Header.Get(traceHeader)
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	re.writer.Header().Set(traceHeader, trace)
	re.req = req.WithContext(logger_i.ContextWithTrace(req.Context(), trace))
	return re
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip, _, err := net.SplitHostPort(re.req.RemoteAddr)
	if err != nil {
		ip = re.req.RemoteAddr
	}

	if !limiterInstance.Allow(ip, requestCost(re.req), time.Now()) {
		re.logger.Warn("Rate limit exceeded", "ip", ip, "method", re.req.Method)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "Rate limit exceeded, retry later",
		}
	}
	return re
}

// handleBadRequest writes the rejection, if any, and reports whether the request may proceed.
func handleBadRequest(re requestResponseStruct) bool {
	if !re.badRequest.isBadRequest {
		return true
	}
	remote := ""
	if re.req != nil {
		remote = re.req.RemoteAddr
	}
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "IP", remote)
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, re.badRequest.errorMessage)
	return false
}
