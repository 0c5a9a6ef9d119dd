package http

import (
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"
)

// handleJoinQR renders the player join link as a PNG for the host screen.
func (s *server) handleJoinQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(s.joinURL(r), qrcode.Medium, 256)
	if err != nil {
		s.Log.Error("encode join qr", "error", err)
		writeError(w, http.StatusInternalServerError, "could not render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

func (s *server) joinURL(r *http.Request) string {
	base := strings.TrimRight(s.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join"
}
