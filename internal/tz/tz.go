// Package tz resolves the timezone identifiers found in device configuration.
//
// Devices are configured with POSIX TZ strings such as
// "EST5EDT,M3.2.0,M11.1.0", which time.LoadLocation does not accept. Such a
// string is wrapped in a minimal TZif blob with no transitions; the runtime
// then evaluates the string itself as the zone's footer rule for every
// instant.
package tz

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is returned for identifiers that are neither a known zone name
// nor a POSIX TZ string.
var ErrInvalid = errors.New("invalid timezone")

// Load resolves an IANA zone name ("America/New_York") or a POSIX TZ string.
// The empty string is UTC.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if !strings.ContainsAny(name, ",<") {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, nil
		}
	}
	return Posix(name)
}

// Posix builds a location from a POSIX TZ string.
func Posix(s string) (*time.Location, error) {
	std, rest, ok := posixName(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q: bad standard name", ErrInvalid, s)
	}
	offset, rest, ok := posixOffset(rest)
	if !ok {
		return nil, fmt.Errorf("%w: %q: bad offset", ErrInvalid, s)
	}
	if rest != "" {
		// DST part: a name, then optional offset and rules. The runtime
		// parses the rules; only the name shape is checked here.
		if _, _, ok := posixName(rest); !ok {
			return nil, fmt.Errorf("%w: %q: bad daylight name", ErrInvalid, s)
		}
	}

	// POSIX offsets count hours west of Greenwich.
	loc, err := time.LoadLocationFromTZData(s, tzif(std, int32(-offset), s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return loc, nil
}

// posixName reads "EST" (3+ letters) or "<+0330>".
func posixName(s string) (name, rest string, ok bool) {
	if strings.HasPrefix(s, "<") {
		end := strings.IndexByte(s, '>')
		if end < 4 {
			return "", "", false
		}
		return s[1:end], s[end+1:], true
	}
	i := 0
	for i < len(s) && (s[i] >= 'A' && s[i] <= 'Z' || s[i] >= 'a' && s[i] <= 'z') {
		i++
	}
	if i < 3 {
		return "", "", false
	}
	return s[:i], s[i:], true
}

// posixOffset reads [+-]hh[:mm[:ss]] and returns seconds.
func posixOffset(s string) (secs int, rest string, ok bool) {
	sign := 1
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	var parts [3]int
	n := 0
	for n < 3 {
		digits := 0
		v := 0
		for digits < len(s) && digits < 2 && s[digits] >= '0' && s[digits] <= '9' {
			v = v*10 + int(s[digits]-'0')
			digits++
		}
		if digits == 0 {
			break
		}
		parts[n] = v
		n++
		s = s[digits:]
		if n < 3 && strings.HasPrefix(s, ":") {
			s = s[1:]
			continue
		}
		break
	}
	if n == 0 || parts[0] > 24 || parts[1] > 59 || parts[2] > 59 {
		return 0, "", false
	}
	return sign * (parts[0]*3600 + parts[1]*60 + parts[2]), s, true
}

// tzif encodes a version 2 TZif file holding a single local time type and
// the given footer rule.
func tzif(abbr string, utcoff int32, footer string) []byte {
	chars := append([]byte(abbr), 0)

	var b bytes.Buffer
	block := func() {
		b.WriteString("TZif2")
		b.Write(make([]byte, 15))
		// isutcnt, isstdcnt, leapcnt, timecnt, typecnt, charcnt
		for _, n := range []uint32{0, 0, 0, 0, 1, uint32(len(chars))} {
			_ = binary.Write(&b, binary.BigEndian, n)
		}
		_ = binary.Write(&b, binary.BigEndian, utcoff)
		b.WriteByte(0) // isdst
		b.WriteByte(0) // abbreviation index
		b.Write(chars)
	}
	// Version 1 data block, then the 64-bit block readers actually use.
	block()
	block()
	b.WriteByte('\n')
	b.WriteString(footer)
	b.WriteByte('\n')
	return b.Bytes()
}
