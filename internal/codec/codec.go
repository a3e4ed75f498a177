// Package codec decodes the primitive quantities carried in WMO TEMP code groups.
//
// Every function is pure. Placeholder groups (solidi), groups that are too short
// and groups with non-digit characters where digits are required all decode as
// absent (ok == false) so that callers can carry on with the next group.
package codec

import (
	"strconv"
	"strings"
)

// SurfaceIndicator is the PP indicator of the TTAA surface pressure group.
const SurfaceIndicator = "99"

// standardLevels maps the two-digit PP indicator of a mandatory level to hPa.
var standardLevels = map[string]int{
	"00": 1000,
	"92": 925,
	"85": 850,
	"70": 700,
	"50": 500,
	"40": 400,
	"30": 300,
	"25": 250,
	"20": 200,
	"15": 150,
	"10": 100,
}

// IsPlaceholder reports whether a group is made entirely of solidi ("/////").
func IsPlaceholder(group string) bool {
	return group != "" && strings.Trim(group, "/") == ""
}

// Digits parses s as an unsigned decimal number of exactly n digits.
func Digits(s string, n int) (int, bool) {
	if len(s) != n {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PressureLevel decodes the PP indicator of a level group to hPa.
// The surface indicator 99 is not a level and returns ok == false.
func PressureLevel(pp string) (int, bool) {
	v, ok := Digits(pp, 2)
	if !ok || pp == SurfaceIndicator {
		return 0, false
	}
	if p, found := standardLevels[pp]; found {
		return p, true
	}
	return v * 10, true
}

// Height converts the three-digit hhh remainder to geopotential metres.
// The WMO code drops different leading/trailing digits per pressure band, so
// the scaling depends on the level:
//
//	p > 850          hhh
//	p == 850         1000 + hhh
//	p == 700         2000 + hhh
//	300 <= p <= 500  hhh * 10
//	100 <= p <= 250  10000 + hhh * 10
//	otherwise        hhh
func Height(pressure int, hhh string) (int, bool) {
	h, ok := Digits(hhh, 3)
	if !ok {
		return 0, false
	}
	switch {
	case pressure > 850:
		return h, true
	case pressure == 850:
		return 1000 + h, true
	case pressure == 700:
		return 2000 + h, true
	case pressure >= 300 && pressure <= 500:
		return h * 10, true
	case pressure >= 100 && pressure <= 250:
		return 10000 + h*10, true
	default:
		return h, true
	}
}

// PressureHeight decodes a PPhhh group. The height is nil when hhh is missing
// or malformed; ok is false when no pressure level can be recovered.
func PressureHeight(group string) (pressure int, height *int, ok bool) {
	if len(group) != 5 {
		return 0, nil, false
	}
	pressure, ok = PressureLevel(group[:2])
	if !ok {
		return 0, nil, false
	}
	if h, hok := Height(pressure, group[2:]); hok {
		height = &h
	}
	return pressure, height, true
}

// Temperature decodes a TTT group given in tenths of a degree. The sign is
// carried by the parity of the tenths digit: even is positive, odd negative.
func Temperature(ttt string) (float64, bool) {
	v, ok := Digits(ttt, 3)
	if !ok {
		return 0, false
	}
	negative := v%2 == 1
	t := float64(v) / 10
	if negative {
		t = -t
	}
	return t, true
}

// Depression decodes a DD dewpoint depression code. Codes up to 50 are tenths
// of a degree (0.0-5.0); codes above 50 are whole degrees offset by 50.
func Depression(dd string) (float64, bool) {
	v, ok := Digits(dd, 2)
	if !ok {
		return 0, false
	}
	if v > 50 {
		return float64(v - 50), true
	}
	return float64(v) / 10, true
}

// TempDepression splits a TTTDD group into temperature and dewpoint depression.
// Each half decodes independently; an absent half is returned as nil.
func TempDepression(group string) (temperature, depression *float64) {
	if len(group) >= 3 {
		if t, ok := Temperature(group[:3]); ok {
			temperature = &t
		}
	}
	if len(group) >= 5 {
		if d, ok := Depression(group[3:5]); ok {
			depression = &d
		}
	}
	return temperature, depression
}

// Wind decodes a dddff group. Speeds of 100 kt and more are signalled by a 1 or
// 6 in the last direction digit: that digit is removed from the direction and
// 100 is added to the speed.
func Wind(group string) (direction, speed int, ok bool) {
	if len(group) != 5 {
		return 0, 0, false
	}
	direction, ok = Digits(group[:3], 3)
	if !ok {
		return 0, 0, false
	}
	speed, ok = Digits(group[3:], 2)
	if !ok {
		return 0, 0, false
	}
	if last := direction % 10; last == 1 || last == 6 {
		direction -= last
		speed += 100
	}
	return direction, speed, true
}

// PressureTail decodes the trailing three digits of an NNPPP group as hPa.
func PressureTail(group string) (int, bool) {
	if len(group) != 5 {
		return 0, false
	}
	return Digits(group[2:], 3)
}
