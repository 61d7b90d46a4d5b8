// ABOUTME: Duration parsing for podcast episode lengths found in feed extensions
// ABOUTME: Normalizes HH:MM:SS, MM:SS and Go duration strings to seconds

package duration

import (
	"strconv"
	"strings"
	"time"
)

// ParseToSeconds converts various duration formats to a seconds string.
// Unrecognized input is returned unchanged.
func ParseToSeconds(durationStr string) string {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return ""
	}

	// If already a number, assume it's seconds
	if _, err := strconv.Atoi(durationStr); err == nil {
		return durationStr
	}

	// Try parsing as Go duration (e.g., "1h30m")
	if dur, err := time.ParseDuration(durationStr); err == nil {
		return strconv.Itoa(int(dur.Seconds()))
	}

	parts := strings.Split(durationStr, ":")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return durationStr
		}
		nums[i] = n
	}

	switch len(nums) {
	case 3: // HH:MM:SS
		return strconv.Itoa(nums[0]*3600 + nums[1]*60 + nums[2])
	case 2: // MM:SS
		return strconv.Itoa(nums[0]*60 + nums[1])
	}

	return durationStr
}
