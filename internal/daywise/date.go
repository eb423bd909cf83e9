package daywise

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedDate is returned for dates that are not three "/"-separated
// integers in day/month/year order.
var ErrMalformedDate = errors.New("daywise: malformed date")

// ParseDate splits a "dd/mm/yyyy" string into its components. Values are not
// range-checked; out-of-range days and months are normalised when the date is
// converted to a timestamp.
func ParseDate(s string) (day, month, year int, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedDate, s)
	}
	var vals [3]int
	for i, p := range parts {
		v, convErr := strconv.Atoi(strings.TrimSpace(p))
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrMalformedDate, s)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// FormatDate renders t as "dd/mm/yyyy".
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// midnight returns the start of the given calendar day in loc as epoch millis.
func midnight(day, month, year int, loc *time.Location) int64 {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc).UnixMilli()
}
