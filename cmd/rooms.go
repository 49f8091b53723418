package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/store"
	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Inspect or rebuild the classroom roster",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the roster grouped by building and area",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		r, err := loadRoster(s)
		if err != nil {
			return err
		}

		buildings := r.Grouped()
		total := 0
		for _, b := range buildings {
			count := 0
			for _, a := range b.Areas {
				count += len(a.Rooms)
			}
			total += count
			fmt.Printf("%s: %d rooms, %d areas\n", b.Name, count, len(b.Areas))
			for _, a := range b.Areas {
				label := a.Name
				if label == "" {
					label = "主区"
				}
				fmt.Printf("  %s: %d rooms\n", label, len(a.Rooms))
				for _, room := range a.Rooms {
					fmt.Printf("    %s\n", room.Name)
				}
			}
		}
		fmt.Printf("Total: %d rooms in %d buildings\n", total, len(buildings))

		return nil
	},
}

var roomsImportCmd = &cobra.Command{
	Use:   "import <grid.html>",
	Short: "Rebuild the roster from a saved full timetable grid",
	Long: `Reads a saved copy of the portal's whole-school timetable grid and
extracts every room name from the first column of #kbtable, replacing
the stored roster. Query the portal with no building filter and save the
response to produce such a file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening grid file: %w", err)
		}
		defer f.Close()

		doc, err := goquery.NewDocumentFromReader(f)
		if err != nil {
			return fmt.Errorf("parsing grid HTML: %w", err)
		}

		var names []string
		seen := make(map[string]bool)
		doc.Find("#kbtable tr td:first-child").Each(func(_ int, cell *goquery.Selection) {
			name := trimmedText(cell)
			if name == "" || seen[name] {
				return
			}
			seen[name] = true
			names = append(names, name)
		})
		if len(names) == 0 {
			return fmt.Errorf("no room names found in %s (is it a #kbtable grid page?)", args[0])
		}

		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.SaveRoster(names); err != nil {
			return fmt.Errorf("saving roster: %w", err)
		}

		fmt.Printf("Imported %d rooms.\n", len(names))
		return nil
	},
}

func trimmedText(s *goquery.Selection) string {
	text := strings.TrimSpace(s.Text())
	// The header's corner cell ("教室\节次") also sits in column one.
	if strings.HasPrefix(text, "教室") {
		return ""
	}
	return text
}

func init() {
	roomsCmd.AddCommand(roomsListCmd)
	roomsCmd.AddCommand(roomsImportCmd)
	rootCmd.AddCommand(roomsCmd)
}
