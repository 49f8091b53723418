package roster

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "embed"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/model"
	"github.com/sirupsen/logrus"
)

//go:embed classrooms.json
var defaultRosterJSON []byte

// rosterFile is the on-disk shape, matching the embedded default.
type rosterFile struct {
	Buildings []struct {
		Name  string   `json:"name"`
		Rooms []string `json:"rooms"`
	} `json:"buildings"`
}

// Roster is the authoritative ordered list of room names. Order is
// preserved from the source file and carries through to query results.
type Roster struct {
	names []string
}

// Default returns the built-in roster shipped with the binary.
func Default() *Roster {
	r, err := parse(defaultRosterJSON)
	if err != nil {
		// The embedded file is validated by tests; a parse failure here
		// means a broken build, not bad user input.
		panic(fmt.Sprintf("embedded roster invalid: %v", err))
	}
	return r
}

// Load reads a roster file, falling back to the built-in default when the
// file is absent. A present-but-malformed file is an error: silently
// replacing user data with defaults would mask the problem.
func Load(path string) (*Roster, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logrus.WithField("path", path).Warn("roster file missing, using built-in default")
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	r, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	return r, nil
}

// FromNames builds a roster from an explicit ordered name list.
func FromNames(names []string) *Roster {
	return &Roster{names: append([]string(nil), names...)}
}

func parse(data []byte) (*Roster, error) {
	var f rosterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	var names []string
	for _, b := range f.Buildings {
		names = append(names, b.Rooms...)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("roster contains no rooms")
	}
	return &Roster{names: names}, nil
}

// Names returns all room names in roster order.
func (r *Roster) Names() []string {
	return append([]string(nil), r.names...)
}

// FilterPrefix returns the rooms whose name starts with prefix, in
// roster order. An empty prefix returns every room.
func (r *Roster) FilterPrefix(prefix string) []string {
	if prefix == "" {
		return r.Names()
	}
	var out []string
	for _, n := range r.names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	return out
}

// Len reports the number of rooms.
func (r *Roster) Len() int { return len(r.names) }

// Grouped returns the roster arranged building -> area -> rooms.
func (r *Roster) Grouped() []model.Building {
	return GroupByBuilding(r.names)
}
