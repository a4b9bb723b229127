package vpay

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"
)

const (
	delimiter     = "|"
	lineEnding    = "\r\n"
	seqWidth      = 7
	countWidth    = 9
	timestampBase = "2006-01-02-15.04.05.000"
	stampLayout   = "20060102150405"
	dateLayout    = "2006-01-02"
)

// Field width limits imposed by the provider.
const (
	maxNameLen        = 100
	maxAddressLen     = 40
	maxCityLen        = 50
	maxStateLen       = 3
	maxCountryLen     = 3
	postalLen         = 5
	maxDescriptionLen = 80
)

// ProviderLocation is the time zone provider timestamps are written and read in.
var ProviderLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("load provider location: %v", err))
	}
	return loc
}()

// FormatTimestamp renders t as YYYY-MM-DD-HH.MM.SS.mmm000 in provider time.
func FormatTimestamp(t time.Time) string {
	return t.In(ProviderLocation).Format(timestampBase) + "000"
}

// ParseTimestamp reads a YYYY-MM-DD-HH.MM.SS.mmm000 value in provider time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(timestampBase)+3 {
		s = s[:len(timestampBase)]
	}
	t, err := time.ParseInLocation(timestampBase, s, ProviderLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse provider timestamp %q: %w", s, err)
	}
	return t, nil
}

// FileStamp renders the compact timestamp used in file names.
func FileStamp(t time.Time) string {
	return t.In(ProviderLocation).Format(stampLayout)
}

// text upper-cases, trims and truncates a free-text value so it cannot break the record layout.
func text(s string, max int) string {
	s = strings.NewReplacer(delimiter, " ", "\r", " ", "\n", " ").Replace(s)
	s = strings.ToUpper(strings.TrimSpace(s))
	if max > 0 && utf8.RuneCountInString(s) > max {
		s = strings.TrimSpace(string([]rune(s)[:max]))
	}
	return s
}

// zeroLeft truncates to width and pads with leading zeros.
func zeroLeft(s string, width int) string {
	s = strings.TrimSpace(s)
	if len(s) > width {
		s = s[:width]
	}
	if s == "" {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func seq(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// substr extracts a fixed-position field, tolerating short lines.
func substr(s string, start, end int) string {
	if start >= len(s) {
		return ""
	}
	if end > len(s) {
		end = len(s)
	}
	return strings.TrimSpace(s[start:end])
}
