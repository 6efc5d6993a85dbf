package color

import (
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

func ColorHeader(s string) string {
	return headerColor.Sprint(s)
}

func ColorInfo(s string) string {
	return infoColor.Sprint(s)
}

func ColorWarning(s string) string {
	return warningColor.Sprint(s)
}

func ColorError(s string) string {
	return errorColor.Sprint(s)
}

// ColorStatus paints a meeting status the way scribectl lists it.
func ColorStatus(status string) string {
	switch status {
	case "active":
		return infoColor.Sprint(status)
	case "finalizing", "scheduled":
		return warningColor.Sprint(status)
	case "failed":
		return errorColor.Sprint(status)
	default:
		return mutedColor.Sprint(status)
	}
}
