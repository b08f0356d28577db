package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/giantswarm/oauth2-core/model"
	"github.com/giantswarm/oauth2-core/oautherr"
)

// ErrorCodeRateLimitExceeded is sent with 429 responses. It is produced by
// the HTTP layer only and has no oautherr.Kind.
const ErrorCodeRateLimitExceeded = "rate_limit_exceeded"

// ensureError makes sure a failed flow leaves an error response in result.
// Flows that already wrote an error or an error redirect are left alone.
func ensureError(result *model.Result, err error) *oautherr.Error {
	oe := oautherr.Wrap(err)
	if result.IsRedirect() {
		return oe
	}
	if _, written := result.Get("error").(string); !written {
		result.SetError(oe)
	}
	return oe
}

// bearerErrorChallenge builds the RFC 6750 section 3 challenge for a
// rejected token.
func bearerErrorChallenge(oe *oautherr.Error) string {
	if oe.Description == "" {
		return fmt.Sprintf(`Bearer realm="Service", error=%q`, oe.Code)
	}
	return fmt.Sprintf(`Bearer realm="Service", error=%q, error_description=%q`, oe.Code, oe.Description)
}

// writeJSONError writes an error body that does not come from a flow.
func writeJSONError(w http.ResponseWriter, code, description string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
