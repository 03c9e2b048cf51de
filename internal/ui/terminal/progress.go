package terminal

import (
	"fmt"
	"strings"

	"github.com/slok/modkeeper/internal/task"
)

const barWidth = 30

// renderProgress returns the single line view of a task progress.
func renderProgress(p task.Progress) string {
	var sb strings.Builder
	sb.WriteString("  [")
	sb.WriteString(bar(p.OverallProgress, p.OverallMax))
	sb.WriteString("] ")
	if p.OverallMax > 0 {
		sb.WriteString(fmt.Sprintf("%d/%d ", p.OverallProgress, p.OverallMax))
	}
	sb.WriteString(p.OverallMessage)

	if p.ItemMax > 0 {
		pct := float64(p.ItemProgress) / float64(p.ItemMax) * 100
		sb.WriteString(mutedStyle.Render(fmt.Sprintf(" (%3.0f%% %s)", pct, p.ItemMessage)))
	}

	return sb.String()
}

func bar(progress, max int) string {
	if max <= 0 {
		return strings.Repeat(" ", barWidth)
	}
	filled := progress * barWidth / max
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
}
