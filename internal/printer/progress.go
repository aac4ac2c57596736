package printer

import (
	"fmt"
	"strings"
)

const barWidth = 30

// ProgressBar renders a percentage as a fixed width bar, e.g. "[=====     ]  50%".
func ProgressBar(pct int) string {
	pct = min(max(pct, 0), 100)
	filled := pct * barWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	return fmt.Sprintf("[%s] %3d%%", bar, pct)
}
