package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/magesignaling/relay/internal/turnrest"
)

type iceConfigResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
	TTLSeconds int64              `json:"ttl,omitempty"`
}

// ICEConfigHandler serves the ICE server list clients hand to their
// RTCPeerConnection. TURN entries get ephemeral REST credentials minted per
// request; callers may pass ?userId= so the credential username matches
// their signaling identity.
func ICEConfigHandler(logger *slog.Logger, stunURLs, turnURLs []string, creds *turnrest.Generator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		servers := make([]webrtc.ICEServer, 0, 2)
		if len(stunURLs) > 0 {
			servers = append(servers, webrtc.ICEServer{URLs: stunURLs})
		}

		resp := iceConfigResponse{ICEServers: servers}
		if len(turnURLs) > 0 && creds != nil {
			c, err := creds.Credentials(r.URL.Query().Get("userId"))
			if err != nil {
				// A user id the scheme cannot encode falls back to a random
				// session id.
				c, err = creds.Credentials("")
			}
			if err != nil {
				logger.Error("mint turn credentials", "err", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			resp.ICEServers = append(resp.ICEServers, webrtc.ICEServer{
				URLs:       turnURLs,
				Username:   c.Username,
				Credential: c.Credential,
			})
			resp.TTLSeconds = int64(creds.TTL().Seconds())
		}

		WriteJSON(w, http.StatusOK, resp)
	})
}
