package freerooms

import (
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/timetable"
)

// OccupiedRooms collects the rooms that have at least one occupancy on
// the given weekday, optionally narrowed to one period key (a coarse
// slot code like "0102" or a fine key like "第3节"). An empty period
// means "occupied at any point of the day".
func OccupiedRooms(schedules []model.RoomSchedule, weekday int, period string) map[string]bool {
	// A coarse slot also matches through its fine-grained keys, so a
	// grid slot that only overlaps the requested one still counts.
	keys := []string{period}
	keys = append(keys, timetable.ExpandSlot(period)...)

	occupied := make(map[string]bool)
	for _, rs := range schedules {
		day, ok := rs.Schedule[weekday]
		if !ok {
			continue
		}
		if period == "" {
			if len(day) > 0 {
				occupied[rs.Room] = true
			}
			continue
		}
		for _, key := range keys {
			if len(day[key]) > 0 {
				occupied[rs.Room] = true
				break
			}
		}
	}
	return occupied
}

// FreeRooms returns roster minus the occupied set, preserving roster
// order. A room absent from the schedules entirely is free; occupancy in
// one weekday/period never affects another.
func FreeRooms(schedules []model.RoomSchedule, rosterNames []string, weekday int, period string) []string {
	occupied := OccupiedRooms(schedules, weekday, period)
	free := make([]string, 0, len(rosterNames))
	for _, name := range rosterNames {
		if !occupied[name] {
			free = append(free, name)
		}
	}
	return free
}
