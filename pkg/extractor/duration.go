package extractor

import (
	"regexp"
	"strings"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// FormatDuration renders an ISO-8601 duration such as PT1H30M as "1h 30m".
// Values that are not ISO durations are returned unchanged.
func FormatDuration(iso string) string {
	iso = strings.TrimSpace(iso)
	m := isoDurationPattern.FindStringSubmatch(strings.ToUpper(iso))
	if m == nil || iso == "P" || iso == "PT" {
		return iso
	}

	var parts []string
	for i, unit := range []string{"d", "h", "m", "s"} {
		value := strings.TrimLeft(m[i+1], "0")
		if value == "" || strings.HasPrefix(value, ".") {
			continue
		}
		parts = append(parts, value+unit)
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}
