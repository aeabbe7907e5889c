package twitter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clonedigital/postpilot/internal/apperr"
)

type apiErrorBody struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// parseAPIError maps a non-2xx platform response onto the error
// taxonomy the dashboard renders: rate limited, forbidden (with the
// duplicate-content and suspended-account sub-cases), expired
// credentials, or a fallback carrying the raw detail.
func parseAPIError(status int, body []byte) *apperr.Error {
	detail := ""
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		detail = parsed.Detail
		if detail == "" && len(parsed.Errors) > 0 {
			detail = parsed.Errors[0].Message
		}
	} else {
		raw := string(body)
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return apperr.Upstream(fmt.Sprintf("Twitter error (HTTP %d)", status), raw)
	}

	switch status {
	case http.StatusTooManyRequests:
		return apperr.RateLimited(time.Minute)
	case http.StatusForbidden:
		if strings.Contains(detail, "duplicate") {
			return apperr.Forbidden("duplicate content: the platform rejects identical posts", detail)
		}
		if strings.Contains(detail, "suspended") {
			return apperr.Forbidden("account suspended: check the account status on the platform", detail)
		}
		if detail == "" {
			detail = "check the account permissions"
		}
		return apperr.Forbidden("access denied by the platform", detail)
	case http.StatusUnauthorized:
		return apperr.Unauthorized("invalid or expired platform credentials, reconfigure the API keys")
	default:
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", status)
		}
		return apperr.Upstream("Twitter error", detail)
	}
}
