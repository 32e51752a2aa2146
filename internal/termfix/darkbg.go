// ABOUTME: Decides the terminal background for lipgloss before bubbletea initializes
// ABOUTME: Reads COLORFGBG instead of sending OSC queries; must not import bubbletea

package termfix

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	// bubbletea's init calls lipgloss.HasDarkBackground; once a value is set
	// the OSC 10/11 query is skipped. Go runs this init first only while
	// this package stays free of bubbletea imports.
	lipgloss.SetHasDarkBackground(darkBackground(os.Getenv("COLORFGBG")))
}

// darkBackground interprets COLORFGBG ("fg;bg" or "fg;default;bg"). Unknown
// or missing values count as dark.
func darkBackground(colorfgbg string) bool {
	bg := colorfgbg
	for i := len(colorfgbg) - 1; i >= 0; i-- {
		if colorfgbg[i] == ';' {
			bg = colorfgbg[i+1:]
			break
		}
	}
	switch bg {
	case "7", "15":
		return false
	default:
		return true
	}
}
