package model

// RoomIdentity is the decomposed form of a portal room name.
type RoomIdentity struct {
	Building   string `json:"building"`
	Area       string `json:"area,omitempty"`
	RoomNumber string `json:"room_number"`
}

// UnnumberedRoom is the sentinel RoomNumber for names with no numeric suffix.
const UnnumberedRoom = "无编号"

// CourseInfo is one course entry parsed from a timetable cell. Every field
// except RawLines is best-effort; the portal's cell text is free-form.
type CourseInfo struct {
	CourseName  string   `json:"course_name"`
	Teacher     string   `json:"teacher,omitempty"`
	WeekRange   string   `json:"week_range,omitempty"`
	ClassGroups []string `json:"class_groups,omitempty"`
	Room        string   `json:"room,omitempty"`
	RawLines    []string `json:"raw_lines"`
}

// OccupancyRecord states that a room is scheduled at one weekday/period.
// A cell with stacked course blocks yields multiple Courses entries.
type OccupancyRecord struct {
	Room    string       `json:"room"`
	Weekday int          `json:"weekday"`
	Period  string       `json:"period"`
	Courses []CourseInfo `json:"courses"`
}

// DaySchedule maps a period key ("0102" or "第1节") to its occupancies.
type DaySchedule map[string][]OccupancyRecord

// RoomSchedule is one room's parsed timetable, weekday (1-7) -> periods.
type RoomSchedule struct {
	Room     string              `json:"room"`
	Schedule map[int]DaySchedule `json:"schedule"`
}

// FreeRoomResult is the answer to a free-classroom query.
type FreeRoomResult struct {
	Term      string   `json:"term"`
	Week      int      `json:"week"`
	Weekday   int      `json:"weekday"`
	Period    string   `json:"period,omitempty"`
	Building  string   `json:"building,omitempty"`
	FreeRooms []string `json:"free_rooms"`
}

// SessionState holds the portal cookies for one account. It is owned by
// the session manager and replaced wholesale on every login.
type SessionState struct {
	Account         string            `json:"account"`
	Cookies         map[string]string `json:"cookies"`
	LastValidatedAt string            `json:"last_validated_at"`
}

// Building groups a roster's rooms by area for display.
type Building struct {
	Name  string `json:"name"`
	Areas []Area `json:"areas"`
}

// Area is one lettered zone inside a building.
type Area struct {
	Name  string `json:"name"`
	Rooms []Room `json:"rooms"`
}

// Room is a roster entry with its classified identity.
type Room struct {
	Name       string `json:"name"`
	Area       string `json:"area"`
	RoomNumber string `json:"room_number"`
}

// WeekdayNames maps the portal's header labels to weekday numbers.
var WeekdayNames = map[string]int{
	"星期一": 1,
	"星期二": 2,
	"星期三": 3,
	"星期四": 4,
	"星期五": 5,
	"星期六": 6,
	"星期日": 7,
	"星期天": 7,
}
