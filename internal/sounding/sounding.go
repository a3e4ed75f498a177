// Package sounding defines the decoded upper-air profile shared by the TEMP
// decoders, the assembler and every consumer of decoded data.
package sounding

import (
	"math"
	"sort"
)

// Level is one atmospheric level. Pressure is always set; every other field is
// nil when it could not be decoded.
type Level struct {
	Pressure           int      `json:"pressure"`                      // hPa
	Height             *int     `json:"height,omitempty"`              // geopotential metres
	Temperature        *float64 `json:"temperature,omitempty"`         // °C
	Dewpoint           *float64 `json:"dewpoint,omitempty"`            // °C, derived
	DewpointDepression *float64 `json:"dewpoint_depression,omitempty"` // °C
	WindDirection      *int     `json:"wind_direction,omitempty"`      // degrees
	WindSpeed          *int     `json:"wind_speed,omitempty"`          // knots
}

// SetThermo sets temperature and dewpoint depression and re-derives the dewpoint.
func (l *Level) SetThermo(temperature, depression *float64) {
	l.Temperature = temperature
	l.DewpointDepression = depression
	l.Dewpoint = Dewpoint(temperature, depression)
}

// SetWind sets both wind fields.
func (l *Level) SetWind(direction, speed int) {
	l.WindDirection = &direction
	l.WindSpeed = &speed
}

// HasWind reports whether both wind fields are present.
func (l *Level) HasWind() bool {
	return l.WindDirection != nil && l.WindSpeed != nil
}

// Surface holds the surface observation. It is not part of the level lists.
type Surface struct {
	Pressure           *int     `json:"pressure,omitempty"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Dewpoint           *float64 `json:"dewpoint,omitempty"`
	DewpointDepression *float64 `json:"dewpoint_depression,omitempty"`
	WindDirection      *int     `json:"wind_direction,omitempty"`
	WindSpeed          *int     `json:"wind_speed,omitempty"`
}

// SetThermo sets temperature and dewpoint depression and re-derives the dewpoint.
func (s *Surface) SetThermo(temperature, depression *float64) {
	s.Temperature = temperature
	s.DewpointDepression = depression
	s.Dewpoint = Dewpoint(temperature, depression)
}

// Tropopause is reported only when every field decoded.
type Tropopause struct {
	Pressure           int     `json:"pressure"`
	Temperature        float64 `json:"temperature"`
	Dewpoint           float64 `json:"dewpoint"`
	DewpointDepression float64 `json:"dewpoint_depression"`
	WindDirection      int     `json:"wind_direction"`
	WindSpeed          int     `json:"wind_speed"`
}

// MaxWind is the level of maximum wind.
type MaxWind struct {
	Pressure      int `json:"pressure"`
	WindDirection int `json:"wind_direction"`
	WindSpeed     int `json:"wind_speed"`
}

// Unknown stands in for an unreadable day or hour where a plain int is needed.
// Decoded days run from -50 to 49, so -1 is not free.
const Unknown = -99

// Profile is the decoded result of one TTAA report and its optional TTBB part.
// It is built once per decode and not modified afterwards.
type Profile struct {
	Station     string      `json:"station"`
	Day         *int        `json:"day,omitempty"`
	Hour        *int        `json:"hour,omitempty"`
	Surface     Surface     `json:"surface"`
	Mandatory   []Level     `json:"mandatory_levels"`
	Significant []Level     `json:"significant_levels"`
	Tropopause  *Tropopause `json:"tropopause,omitempty"`
	MaxWind     *MaxWind    `json:"max_wind,omitempty"`
}

// Dewpoint returns temperature minus depression rounded to one decimal, or nil
// when either input is absent.
func Dewpoint(temperature, depression *float64) *float64 {
	if temperature == nil || depression == nil {
		return nil
	}
	d := Round1(*temperature - *depression)
	return &d
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// SortByPressure orders levels by descending pressure. Levels with equal
// pressure keep their relative order.
func SortByPressure(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Pressure > levels[j].Pressure
	})
}

// FindLevel returns the index of the level at exactly pressure, or -1.
func FindLevel(levels []Level, pressure int) int {
	for i := range levels {
		if levels[i].Pressure == pressure {
			return i
		}
	}
	return -1
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
