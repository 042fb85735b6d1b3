package banner

import (
	"stampede/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
       __                                 __   
  ___ / /____ ___ _  ___  ___ ___  ___ __/ /__ 
 (_-</ __/ _ '/  ' \/ _ \/ -_) _ \/ -_) _  / -_)
/___/\__/\_,_/_/_/_/ .__/\__/\_,_/\__/\_,_/\__/ 
                  /_/                           `

	return "\n" + style.Render(ascii) + "\n"
}
