package timetable

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/sirupsen/logrus"
)

// ParseError reports an HTML grid whose structure does not match the
// portal's timetable layout. It is never downgraded to a partial result:
// a shape change in the portal must surface, not silently return "all
// rooms free".
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timetable: %s", e.Reason)
}

// FilterOptions narrows which cells of the grid are parsed.
type FilterOptions struct {
	// Weekday keeps only one day's columns (1-7); 0 keeps all.
	Weekday int
	// RoomPrefix skips rows whose room name lacks the prefix.
	RoomPrefix string
	// PeriodStart/PeriodEnd keep only coarse slots overlapping the
	// range; 0 means unbounded on that side.
	PeriodStart int
	PeriodEnd   int
}

var brTagRe = regexp.MustCompile(`(?i)<br\s*/?>`)

// ParseGrid parses the portal's classroom timetable table into one
// RoomSchedule per room that has at least one matching occupancy. Rooms
// with no occupancy in the filtered scope are omitted; the free-slot
// calculator reconciles them against the roster.
//
// The grid is rows-of-rooms by columns-of-(weekday x period): the first
// header row names weekdays (one colspan-expanded cell per day), the
// second lists the coarse period slots for every day in sequence.
func ParseGrid(r io.Reader, opts FilterOptions) ([]model.RoomSchedule, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing timetable HTML: %w", err)
	}

	table := doc.Find("#kbtable")
	if table.Length() == 0 {
		return nil, &ParseError{Reason: "table #kbtable not found"}
	}

	headerRows := table.Find("thead tr")
	if headerRows.Length() < 2 {
		return nil, &ParseError{Reason: "expected two header rows"}
	}

	weekdays := expandWeekdayHeader(headerRows.Eq(0))
	periods := periodLabels(headerRows.Eq(1))
	if len(periods) == 0 {
		return nil, &ParseError{Reason: "no period labels in header"}
	}

	if len(periods)%7 != 0 {
		// The grid always spans a full week; a remainder means the
		// column math below would file cells under the wrong day.
		return nil, &ParseError{Reason: fmt.Sprintf("period column count %d is not a multiple of 7", len(periods))}
	}
	periodsPerDay := len(periods) / 7

	logrus.WithFields(logrus.Fields{
		"weekday_columns": len(weekdays),
		"periods_per_day": periodsPerDay,
	}).Debug("parsed timetable header")

	var results []model.RoomSchedule

	rows := table.Find("tr")
	rows.Each(func(rowIdx int, row *goquery.Selection) {
		if rowIdx < 2 {
			return
		}
		cells := row.Find("td")
		if cells.Length() <= 1 {
			return
		}

		room := strings.TrimSpace(cells.Eq(0).Text())
		if room == "" {
			return
		}
		if opts.RoomPrefix != "" && !strings.HasPrefix(room, opts.RoomPrefix) {
			return
		}

		schedule := make(map[int]model.DaySchedule)
		occupied := false

		cells.Each(func(cellIdx int, cell *goquery.Selection) {
			if cellIdx == 0 {
				return
			}
			col := cellIdx - 1
			day := col/periodsPerDay + 1
			period := periods[col%periodsPerDay]

			if opts.Weekday != 0 && day != opts.Weekday {
				return
			}
			if (opts.PeriodStart > 0 || opts.PeriodEnd > 0) && !slotOverlaps(period, opts.PeriodStart, opts.PeriodEnd) {
				return
			}

			var courses []model.CourseInfo
			cell.Find("div.kbcontent1").Each(func(_ int, div *goquery.Selection) {
				if info, ok := Decompose(blockText(div)); ok {
					courses = append(courses, *info)
				}
			})
			if len(courses) == 0 {
				return
			}

			record := model.OccupancyRecord{
				Room:    room,
				Weekday: day,
				Period:  period,
				Courses: courses,
			}

			if schedule[day] == nil {
				schedule[day] = make(model.DaySchedule)
			}
			schedule[day][period] = append(schedule[day][period], record)
			// Mirror the coarse slot onto each individual period so
			// fine-grained lookups need no second pass.
			for _, key := range ExpandSlot(period) {
				schedule[day][key] = append(schedule[day][key], record)
			}
			occupied = true
		})

		if occupied {
			results = append(results, model.RoomSchedule{Room: room, Schedule: schedule})
		}
	})

	return results, nil
}

// expandWeekdayHeader flattens the first header row into one weekday
// label per data column, repeating colspan-ed cells.
func expandWeekdayHeader(row *goquery.Selection) []string {
	var labels []string
	row.Find("th,td").Each(func(i int, cell *goquery.Selection) {
		if i == 0 {
			return
		}
		name := strings.TrimSpace(cell.Text())
		span := 1
		if cs, ok := cell.Attr("colspan"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(cs)); err == nil && n > 0 {
				span = n
			}
		}
		for j := 0; j < span; j++ {
			labels = append(labels, name)
		}
	})
	return labels
}

// periodLabels reads the second header row's slot codes.
func periodLabels(row *goquery.Selection) []string {
	var labels []string
	row.Find("td,th").Each(func(i int, cell *goquery.Selection) {
		if i == 0 {
			return
		}
		labels = append(labels, strings.TrimSpace(cell.Text()))
	})
	return labels
}

// blockText extracts a cell block's text with <br> separators preserved
// as newlines, which the decomposer relies on for its positional rules.
func blockText(s *goquery.Selection) string {
	html, err := goquery.OuterHtml(s)
	if err != nil {
		return s.Text()
	}
	html = brTagRe.ReplaceAllString(html, "\n")
	frag, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return s.Text()
	}
	return frag.Text()
}
