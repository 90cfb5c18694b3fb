package cli

import (
	"github.com/fatih/color"

	"github.com/trafficlens/trafficlens/internal/api/models"
)

// colorizeStatus formats an area status with semantic color.
func colorizeStatus(status models.AreaStatus) string {
	switch status {
	case models.AreaStatusTraining:
		return color.New(color.FgHiBlue).Sprint(string(status))
	case models.AreaStatusPaused:
		return color.New(color.FgYellow).Sprint(string(status))
	case models.AreaStatusCompleted:
		return color.New(color.FgHiGreen).Sprint(string(status))
	case models.AreaStatusFailed:
		return color.New(color.FgRed).Sprint(string(status))
	default:
		return string(status)
	}
}
