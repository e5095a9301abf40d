package metrics

import (
	"net/http"

	"salesflow/logger"
)

const component = "marketplace"

// ReportRateLimitExceeded counts a 429 from the marketplace.
func ReportRateLimitExceeded(log *logger.Log, endpoint string) {
	fields := logger.Fields{"endpoint": endpoint, "kind": "rate_limit"}
	incLimited(endpoint, "rate_limit")
	EmitMetric(log, component, "rate_limit_exceeded", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Warn("rate limit exceeded")
}

// ReportBan counts a 403/418 from the marketplace, which signals the key or
// address has been blocked.
func ReportBan(log *logger.Log, endpoint string, status int) {
	fields := logger.Fields{"endpoint": endpoint, "kind": "ban", "status": status}
	incLimited(endpoint, "ban")
	EmitMetric(log, component, "access_blocked", int64(1), "counter", fields)
	log.WithComponent(component).WithFields(fields).Error("marketplace access blocked")
}

// ReportLimitFromStatus maps a response status to the limit metrics above.
// It returns true when the status was a limit signal.
func ReportLimitFromStatus(log *logger.Log, endpoint string, status int) bool {
	switch status {
	case http.StatusTooManyRequests:
		ReportRateLimitExceeded(log, endpoint)
		return true
	case http.StatusForbidden, http.StatusTeapot:
		ReportBan(log, endpoint, status)
		return true
	default:
		return false
	}
}
