package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Middleware resolves the caller's UCP-Agent header into a NegotiatedContext
// and stores it on the request context for downstream handlers.
//
// Missing or malformed headers are tolerated: the request proceeds with the
// merchant's full capability set. A profile fetch failure degrades to core
// capabilities. Only an unsupported protocol version rejects the request.
func Middleware(negotiator *Negotiator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			negotiated, err := resolve(r, negotiator, logger)
			if err != nil {
				var verr *VersionError
				if errors.As(err, &verr) {
					writeVersionError(w, verr)
					return
				}
				logger.Warn("negotiation failed, using default capabilities", "error", err)
				negotiated = negotiator.Default()
			}

			if negotiated.FetchError != nil {
				logger.Warn("agent profile fetch failed, using core capabilities",
					"profile_url", negotiated.AgentProfileURL,
					"error", negotiated.FetchError)
			}

			ctx := context.WithValue(r.Context(), ContextKey, negotiated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve computes the negotiation result for the request.
func resolve(r *http.Request, negotiator *Negotiator, logger *slog.Logger) (*NegotiatedContext, error) {
	header := r.Header.Get(UCPAgentHeader)
	if header == "" {
		return negotiator.Default(), nil
	}

	profileURL, err := ParseUCPAgentHeader(header)
	if err != nil {
		logger.Warn("malformed UCP-Agent header, using default capabilities",
			"header", header, "error", err)
		return negotiator.Default(), nil
	}

	return negotiator.Negotiate(r.Context(), profileURL)
}

func writeVersionError(w http.ResponseWriter, verr *VersionError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    verr.Code,
			"message": verr.Message,
		},
	})
}

// FromContext extracts the negotiation result from a request context.
// Returns nil if negotiation middleware did not run.
func FromContext(ctx context.Context) *NegotiatedContext {
	negotiated, _ := ctx.Value(ContextKey).(*NegotiatedContext)
	return negotiated
}
