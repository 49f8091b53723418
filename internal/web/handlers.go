package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/freerooms"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/portal"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/timetable"
)

func (s *Server) handleFreeRooms(w http.ResponseWriter, r *http.Request) {
	opts := freerooms.QueryOptions{
		BuildingPrefix: r.URL.Query().Get("building"),
		Period:         r.URL.Query().Get("period"),
	}

	if wd := r.URL.Query().Get("weekday"); wd != "" {
		n, err := strconv.Atoi(wd)
		if err != nil || n < 1 || n > 7 {
			http.Error(w, "invalid 'weekday' parameter, expected 1-7", http.StatusBadRequest)
			return
		}
		opts.WeekdayOverride = n
	}

	result, err := s.Service.GetFreeRooms(r.Context(), opts)
	if err != nil {
		var loginErr *portal.LoginFailedError
		var parseErr *timetable.ParseError
		switch {
		case errors.As(err, &loginErr), errors.As(err, &parseErr):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, result)
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if building := r.URL.Query().Get("building"); building != "" {
		writeJSON(w, s.Roster.FilterPrefix(building))
		return
	}
	writeJSON(w, s.Roster.Grouped())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		_, _ = w.Write([]byte("[]"))
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
