package web

import (
	"net/http"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/freerooms"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/roster"
	"github.com/sirupsen/logrus"
)

// Server exposes free-classroom queries over a small JSON API, consumed
// by chat front-ends and scripts.
type Server struct {
	Service *freerooms.Service
	Roster  *roster.Roster
	Addr    string
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/freerooms", s.handleFreeRooms)
	mux.HandleFunc("/api/rooms", s.handleRooms)

	logrus.WithField("addr", s.Addr).Info("serving free classroom API")
	return http.ListenAndServe(s.Addr, mux)
}
