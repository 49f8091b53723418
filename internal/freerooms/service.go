package freerooms

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/portal"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/roster"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/term"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/timetable"
	"github.com/sirupsen/logrus"
)

// Service answers free-classroom queries. It is the single entry point
// front-ends call into: term/week resolution, session handling, grid
// fetching and parsing, and the roster complement all happen here, and
// every failure surfaces as a typed error rather than a partial result.
type Service struct {
	Sessions   *portal.SessionManager
	Roster     *roster.Roster
	StartDates map[string]string

	// Now is the clock; tests override it.
	Now func() time.Time
}

// QueryOptions narrow a free-room query.
type QueryOptions struct {
	// BuildingPrefix keeps only rooms whose name starts with it, both in
	// the portal query and the roster complement.
	BuildingPrefix string
	// WeekdayOverride replaces the computed weekday (1-7); 0 keeps the
	// current one.
	WeekdayOverride int
	// Period narrows to one coarse slot code ("0102") or fine period
	// key ("第3节"); empty means free-all-day.
	Period string
}

// GetFreeRooms computes which rooms are unoccupied for the resolved
// term/week/weekday and the requested scope.
func (s *Service) GetFreeRooms(ctx context.Context, opts QueryOptions) (*model.FreeRoomResult, error) {
	if opts.WeekdayOverride < 0 || opts.WeekdayOverride > 7 {
		return nil, fmt.Errorf("weekday override %d out of range 1-7", opts.WeekdayOverride)
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	termStr := term.Current(now)
	week, weekday := term.WeekAndDay(now, termStr, s.StartDates)
	if opts.WeekdayOverride != 0 {
		weekday = opts.WeekdayOverride
	}

	logrus.WithFields(logrus.Fields{
		"term":    termStr,
		"week":    week,
		"weekday": weekday,
		"prefix":  opts.BuildingPrefix,
		"period":  opts.Period,
	}).Info("querying free classrooms")

	if err := s.Sessions.EnsureLogin(ctx); err != nil {
		return nil, err
	}

	query := portal.GridQuery{
		Term:       termStr,
		RoomPrefix: opts.BuildingPrefix,
		Week:       week,
		Weekday:    weekday,
	}
	filter := timetable.FilterOptions{
		Weekday:    weekday,
		RoomPrefix: opts.BuildingPrefix,
	}
	if start, end, ok := timetable.SlotRange(opts.Period); ok {
		query.PeriodStart = strconv.Itoa(start)
		query.PeriodEnd = strconv.Itoa(end)
		filter.PeriodStart = start
		filter.PeriodEnd = end
	}

	html, err := s.fetchGrid(ctx, query)
	if err != nil {
		return nil, err
	}

	schedules, err := timetable.ParseGrid(strings.NewReader(html), filter)
	if err != nil {
		return nil, err
	}

	rosterNames := s.Roster.FilterPrefix(opts.BuildingPrefix)
	free := FreeRooms(schedules, rosterNames, weekday, opts.Period)

	logrus.WithFields(logrus.Fields{
		"roster":   len(rosterNames),
		"occupied": len(rosterNames) - len(free),
		"free":     len(free),
	}).Info("free classroom query complete")

	return &model.FreeRoomResult{
		Term:      termStr,
		Week:      week,
		Weekday:   weekday,
		Period:    opts.Period,
		Building:  opts.BuildingPrefix,
		FreeRooms: free,
	}, nil
}

// fetchGrid runs the portal query, re-authenticating once when the
// portal invalidates the session mid-flight.
func (s *Service) fetchGrid(ctx context.Context, query portal.GridQuery) (string, error) {
	html, err := s.Sessions.Client().FetchGrid(ctx, query)
	if err == nil {
		return html, nil
	}
	if !errors.Is(err, portal.ErrSessionInvalid) {
		return "", err
	}

	logrus.Info("portal dropped the session, logging in again")
	s.Sessions.Invalidate()
	if err := s.Sessions.EnsureLogin(ctx); err != nil {
		return "", err
	}
	return s.Sessions.Client().FetchGrid(ctx, query)
}
