// Package http holds the thin JSON handlers that expose the already-fixed
// §6 contract over net/http.ServeMux — not a routing layer in its own
// right (spec.md §1 scopes routing, CORS, and request logging out), the
// same "handler struct wraps a usecase, one method per endpoint" shape as
// the teacher's grpcapi.OrderHandler, translated from protobuf to JSON.
package http

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/splitpay/checkout-core/internal/apperrors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Error   *errorBody `json:"error,omitempty"`
}

// writeJSON writes {success:true, ...data} by flattening data's fields
// next to success, matching spec.md §6's `{success, ...}` shape.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	merged := map[string]interface{}{"success": true}
	if data != nil {
		b, err := json.Marshal(data)
		if err == nil {
			var fields map[string]interface{}
			if json.Unmarshal(b, &fields) == nil {
				for k, v := range fields {
					merged[k] = v
				}
			}
		}
	}
	_ = json.NewEncoder(w).Encode(merged)
}

// writeError writes `{success:false, error:{code,message}}` with the
// status apperrors.Error maps its Kind to; any other error is an
// unclassified internal failure.
func writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.Error)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(envelope{
			Success: false,
			Error:   &errorBody{Code: apperrors.CodeInternalError, Message: "internal error"},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

func decodeJSON(r *http.Request, out interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(out)
}

// writeJSONBody encodes an already-assembled response body verbatim,
// used by handlers that need a field shape writeJSON's flattening can't
// express (e.g. the widget's `failedCard` sibling to `error`).
func writeJSONBody(w http.ResponseWriter, body interface{}) error {
	return json.NewEncoder(w).Encode(body)
}

func splitHostPort(addr string) (string, string, error) {
	return net.SplitHostPort(addr)
}
