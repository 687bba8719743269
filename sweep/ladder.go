package sweep

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyLadder is returned when a timeout ladder file has no tiers.
var ErrEmptyLadder = errors.New("timeout ladder has no tiers")

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
)

// Ladder is the ordered list of per-tier time limits, in minutes.
// Tiers are tried once each, in file order. Values need not increase.
type Ladder []int

// LoadLadder reads a timeout ladder: one non-negative integer (minutes) per line.
// Blank lines and lines starting with '#' are skipped.
func LoadLadder(path string) (Ladder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening timeout ladder: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ladder Ladder
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		minutes, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: timeout %q is not an integer", path, lineNo, line)
		}
		if minutes < 0 {
			return nil, fmt.Errorf("%s:%d: timeout must be non-negative, got %d", path, lineNo, minutes)
		}
		ladder = append(ladder, minutes)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading timeout ladder: %w", err)
	}
	if len(ladder) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyLadder)
	}
	return ladder, nil
}

// TimeLimit returns the scheduler time limit string for the given tier.
func (l Ladder) TimeLimit(tier int) string {
	return FormatTimeLimit(l[tier])
}

// FormatTimeLimit converts minutes to the scheduler's D-HH:MM form.
// Days are not padded: 0 -> "0-00:00", 90 -> "0-01:30", 1501 -> "1-01:01".
func FormatTimeLimit(minutes int) string {
	if minutes < 0 {
		panic(fmt.Sprintf("sweep: negative time limit %d", minutes))
	}
	days := minutes / minutesPerDay
	hours := (minutes % minutesPerDay) / minutesPerHour
	mins := minutes % minutesPerHour
	return fmt.Sprintf("%d-%02d:%02d", days, hours, mins)
}

// ParseTimeLimit is the inverse of FormatTimeLimit.
func ParseTimeLimit(s string) (int, error) {
	dayPart, clock, ok := strings.Cut(s, "-")
	if !ok {
		return 0, fmt.Errorf("time limit %q: want D-HH:MM", s)
	}
	hourPart, minPart, ok := strings.Cut(clock, ":")
	if !ok || len(hourPart) != 2 || len(minPart) != 2 {
		return 0, fmt.Errorf("time limit %q: want D-HH:MM", s)
	}
	days, err := strconv.Atoi(dayPart)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("time limit %q: bad day count", s)
	}
	hours, err := strconv.Atoi(hourPart)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("time limit %q: hours must be 00-23", s)
	}
	mins, err := strconv.Atoi(minPart)
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("time limit %q: minutes must be 00-59", s)
	}
	return days*minutesPerDay + hours*minutesPerHour + mins, nil
}
