package transport

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/stemsi/conduct-console/internal/apperr"
)

// envelope mirrors the backend response wrapper.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Backend error codes that mean "the token is stale, refresh it".
// Anything else on a 401/403 is treated as "valid token, action not allowed".
var expiryCodes = map[string]bool{
	"TOKEN_EXPIRED":       true,
	"TOKEN_INVALID":       true,
	"TOKEN_REQUIRED":      true,
	"SESSION_INVALIDATED": true,
}

func mapStatus(status int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env)

	code, msg := "", ""
	if env.Error != nil {
		code = env.Error.Code
		msg = env.Error.Message
		if len(env.Error.Fields) > 0 {
			msg = joinFields(msg, env.Error.Fields)
		}
	}

	e := &apperr.Error{Status: status, Code: code, Message: msg}

	switch {
	case status == http.StatusUnauthorized:
		e.Kind = apperr.KindUnauthorized
		// A bare 401 with no code is most often a stale token.
		e.Expired = code == "" || expiryCodes[code]
	case status == http.StatusForbidden:
		e.Kind = apperr.KindUnauthorized
		e.Expired = false
	case status == http.StatusNotFound:
		e.Kind = apperr.KindNotFound
	case status >= 400 && status < 500:
		e.Kind = apperr.KindInvalidRequest
	default:
		e.Kind = apperr.KindServiceUnavailable
	}

	if e.Message == "" {
		e.Message = defaultMessage(e.Kind, status)
	}
	return e
}

func defaultMessage(kind apperr.Kind, status int) string {
	switch kind {
	case apperr.KindUnauthorized:
		return "you are not authorized to do that"
	case apperr.KindNotFound:
		return "not found"
	case apperr.KindInvalidRequest:
		return strings.ToLower(http.StatusText(status))
	default:
		return "the server is unavailable, try again later"
	}
}

func joinFields(msg string, fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	if msg == "" {
		return strings.Join(parts, "; ")
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}
