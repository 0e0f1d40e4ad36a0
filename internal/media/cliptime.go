package media

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"streamrelay/internal/domain"
)

// ParseClipTime parses SS, MM:SS or HH:MM:SS. The last field may carry a
// fraction ("75.5", "1:15.5"). Minutes and seconds after the first field must
// be below 60.
func ParseClipTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if s == "" || len(parts) > 3 {
		return 0, invalidClipTime(s)
	}

	var total float64
	for i, part := range parts {
		last := i == len(parts)-1

		var v float64
		if last {
			f, err := strconv.ParseFloat(part, 64)
			if err != nil || f < 0 || strings.ContainsAny(part, "eE+-") {
				return 0, invalidClipTime(s)
			}
			v = f
		} else {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || strings.HasPrefix(part, "+") {
				return 0, invalidClipTime(s)
			}
			v = float64(n)
		}

		if i > 0 && v >= 60 {
			return 0, invalidClipTime(s)
		}
		total = total*60 + v
	}

	return time.Duration(total * float64(time.Second)), nil
}

func invalidClipTime(s string) error {
	return domain.Validation(domain.MsgInvalidTimeRange, fmt.Sprintf("invalid time %q", s))
}
