package timetable

import (
	"strings"
	"unicode"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
)

// Decompose parses one course block's text into a CourseInfo. The cell
// text is positional free-form, typically:
//
//	通信电子电路张明强
//	(1-18周)
//	23通信班
//	格物楼B203
//
// Every extracted field is best-effort; RawLines always carries the
// original lines so callers can fall back to verbatim display. Returns
// false for empty, whitespace-only or placeholder text.
func Decompose(cellText string) (*model.CourseInfo, bool) {
	text := strings.TrimSpace(cellText)
	if text == "" || text == "&nbsp;" {
		return nil, false
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, false
	}

	info := &model.CourseInfo{RawLines: lines}

	info.CourseName, info.Teacher = splitCourseTeacher(lines[0])

	// The week-range line looks like "(1-18周)" and can appear on any
	// middle line.
	weekIdx := -1
	for i, line := range lines {
		if strings.Contains(line, "(") && strings.Contains(line, "周)") {
			info.WeekRange = line
			weekIdx = i
			break
		}
	}

	if len(lines) > 1 {
		info.Room = lines[len(lines)-1]
	}

	// Everything between the first and last line, minus the week-range
	// line, is class-group labels.
	for i := 1; i < len(lines)-1; i++ {
		if i == weekIdx {
			continue
		}
		info.ClassGroups = append(info.ClassGroups, lines[i])
	}

	return info, true
}

// splitCourseTeacher separates "通信电子电路张明强" into course name and
// teacher by scanning backward for the boundary of the trailing CJK name
// run. The heuristic is unreliable for mixed CJK/Latin course names, so
// it stays conservative: when no boundary is found the whole line is the
// course name and the teacher is left empty.
func splitCourseTeacher(line string) (course, teacher string) {
	runes := []rune(line)
	last := -1
	for i := len(runes) - 1; i > 0; i-- {
		if unicode.Is(unicode.Han, runes[i]) {
			last = i
			break
		}
	}
	if last <= 0 {
		return line, ""
	}

	// Walk back over the contiguous CJK run ending at last. A trailing
	// run of 2-3 characters preceded by more text reads as a personal
	// name; anything longer is part of the course title.
	start := last
	for start > 0 && unicode.Is(unicode.Han, runes[start-1]) {
		start--
	}
	runLen := last - start + 1
	if start > 0 && last == len(runes)-1 && runLen >= 2 && runLen <= 3 {
		return string(runes[:start]), string(runes[start : last+1])
	}
	return line, ""
}
