package roster

import (
	"regexp"
	"sort"
	"strings"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
)

// The portal exposes rooms only as display strings ("格物楼A104",
// "实验中心B区B205、B207", "JS102"). Classification is an ordered chain of
// pattern matchers; the first match wins, and the final fallback always
// produces a building, so Classify is total.

type matcher struct {
	tag   string
	match func(name string) (model.RoomIdentity, bool)
}

var (
	buildingAreaRe = regexp.MustCompile(`^([\p{Han}]+楼)([A-Z])(\d+)$`)
	labCenterRe    = regexp.MustCompile(`^(实验中心)([A-Z])区(.+)$`)
	jsRoomRe       = regexp.MustCompile(`^JS(\d+)$`)
	jRoomRe        = regexp.MustCompile(`^J([A-Z])(\d+)$`)
	buildingNumRe  = regexp.MustCompile(`^([\p{Han}]+楼)([\d、\-]+)$`)
	digitSplitRe   = regexp.MustCompile(`^([^\d]*?)(\d.*)$`)
	hanPrefixRe    = regexp.MustCompile(`^([\p{Han}]+)`)
)

var sportsFacilities = []struct {
	keywords []string
	category string
}{
	{[]string{"篮球场"}, "篮球场"},
	{[]string{"足球场"}, "足球场"},
	{[]string{"排球场"}, "排球场"},
	{[]string{"网球场"}, "网球场"},
	{[]string{"田径场"}, "田径场"},
	{[]string{"体育", "武术", "健美操", "瑜伽"}, "体育场馆"},
}

var matchers = []matcher{
	{tag: "building-area-room", match: func(name string) (model.RoomIdentity, bool) {
		if m := buildingAreaRe.FindStringSubmatch(name); m != nil {
			return model.RoomIdentity{Building: m[1], Area: m[2], RoomNumber: m[3]}, true
		}
		return model.RoomIdentity{}, false
	}},
	{tag: "lab-center", match: func(name string) (model.RoomIdentity, bool) {
		if m := labCenterRe.FindStringSubmatch(name); m != nil {
			return model.RoomIdentity{Building: m[1], Area: m[2] + "区", RoomNumber: m[3]}, true
		}
		return model.RoomIdentity{}, false
	}},
	// JS must precede the generic J pattern: "JS102" would otherwise
	// classify as J楼 area S.
	{tag: "js-building", match: func(name string) (model.RoomIdentity, bool) {
		if m := jsRoomRe.FindStringSubmatch(name); m != nil {
			return model.RoomIdentity{Building: "JS楼", Area: "S", RoomNumber: m[1]}, true
		}
		return model.RoomIdentity{}, false
	}},
	{tag: "j-building", match: func(name string) (model.RoomIdentity, bool) {
		if m := jRoomRe.FindStringSubmatch(name); m != nil {
			return model.RoomIdentity{Building: "J楼", Area: m[1], RoomNumber: m[2]}, true
		}
		return model.RoomIdentity{}, false
	}},
	{tag: "building-number", match: func(name string) (model.RoomIdentity, bool) {
		if m := buildingNumRe.FindStringSubmatch(name); m != nil {
			return model.RoomIdentity{Building: m[1], RoomNumber: m[2]}, true
		}
		return model.RoomIdentity{}, false
	}},
	{tag: "sports-facility", match: func(name string) (model.RoomIdentity, bool) {
		for _, f := range sportsFacilities {
			for _, kw := range f.keywords {
				if strings.Contains(name, kw) {
					return model.RoomIdentity{Building: f.category, RoomNumber: model.UnnumberedRoom}, true
				}
			}
		}
		return model.RoomIdentity{}, false
	}},
	{tag: "fallback", match: classifyFallback},
}

// Classify decomposes a room name into building, area and room number.
// It never fails: Building is always non-empty and RoomNumber falls back
// to the unnumbered sentinel.
func Classify(name string) model.RoomIdentity {
	for _, m := range matchers {
		if id, ok := m.match(name); ok {
			if id.RoomNumber == "" {
				id.RoomNumber = model.UnnumberedRoom
			}
			return id
		}
	}
	// The fallback matcher is total; this is unreachable.
	return model.RoomIdentity{Building: name, RoomNumber: model.UnnumberedRoom}
}

func classifyFallback(name string) (model.RoomIdentity, bool) {
	if m := digitSplitRe.FindStringSubmatch(name); m != nil && m[1] != "" {
		return model.RoomIdentity{Building: m[1], RoomNumber: m[2]}, true
	}
	if m := hanPrefixRe.FindStringSubmatch(name); m != nil {
		rest := strings.TrimPrefix(name, m[1])
		return model.RoomIdentity{Building: m[1], RoomNumber: rest}, true
	}
	if r := []rune(name); len(r) >= 2 {
		return model.RoomIdentity{Building: string(r[:2])}, true
	}
	return model.RoomIdentity{Building: name}, true
}

// GroupByBuilding classifies every room name and arranges the results as
// building -> area -> rooms, ordered by name, with rooms inside an area
// ordered by their room-number string. Multi-room labels ("A205、A207")
// compare as whole strings.
func GroupByBuilding(names []string) []model.Building {
	byBuilding := make(map[string]map[string][]model.Room)

	for _, name := range names {
		id := Classify(name)
		if byBuilding[id.Building] == nil {
			byBuilding[id.Building] = make(map[string][]model.Room)
		}
		byBuilding[id.Building][id.Area] = append(byBuilding[id.Building][id.Area], model.Room{
			Name:       name,
			Area:       id.Area,
			RoomNumber: id.RoomNumber,
		})
	}

	var buildings []model.Building
	for bName, areas := range byBuilding {
		b := model.Building{Name: bName}
		for aName, rooms := range areas {
			sort.Slice(rooms, func(i, j int) bool {
				return rooms[i].RoomNumber < rooms[j].RoomNumber
			})
			b.Areas = append(b.Areas, model.Area{Name: aName, Rooms: rooms})
		}
		sort.Slice(b.Areas, func(i, j int) bool { return b.Areas[i].Name < b.Areas[j].Name })
		buildings = append(buildings, b)
	}
	sort.Slice(buildings, func(i, j int) bool { return buildings[i].Name < buildings[j].Name })

	return buildings
}
