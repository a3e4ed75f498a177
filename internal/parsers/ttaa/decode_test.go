package ttaa

import (
	"errors"
	"reflect"
	"testing"

	"sounding_parser/internal/bulletin"
	"sounding_parser/internal/sounding"
)

func intVal(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestDecodeScenario(t *testing.T) {
	s := Decode("TTAA 51231 03808 99996 07819 17005 00057 00057 05008 31313")

	if len(s.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", s.Errors)
	}
	if s.Station != "03808" {
		t.Errorf("Station = %q, want 03808", s.Station)
	}
	if intVal(s.Day) != 1 || intVal(s.Hour) != 23 {
		t.Errorf("Day/Hour = %v/%v, want 1/23", intVal(s.Day), intVal(s.Hour))
	}

	sfc := s.Surface
	if intVal(sfc.Pressure) != 996 {
		t.Errorf("Surface.Pressure = %v, want 996", intVal(sfc.Pressure))
	}
	if floatVal(sfc.Temperature) != 7.8 {
		t.Errorf("Surface.Temperature = %v, want 7.8", floatVal(sfc.Temperature))
	}
	if floatVal(sfc.DewpointDepression) != 1.9 {
		t.Errorf("Surface.DewpointDepression = %v, want 1.9", floatVal(sfc.DewpointDepression))
	}
	if floatVal(sfc.Dewpoint) != 5.9 {
		t.Errorf("Surface.Dewpoint = %v, want 5.9", floatVal(sfc.Dewpoint))
	}
	if intVal(sfc.WindDirection) != 170 || intVal(sfc.WindSpeed) != 5 {
		t.Errorf("Surface wind = %v/%v, want 170/5", intVal(sfc.WindDirection), intVal(sfc.WindSpeed))
	}

	if len(s.Mandatory) != 1 {
		t.Fatalf("len(Mandatory) = %d, want 1", len(s.Mandatory))
	}
	l := s.Mandatory[0]
	if l.Pressure != 1000 || intVal(l.Height) != 57 {
		t.Errorf("level = %d hPa %v m, want 1000 hPa 57 m", l.Pressure, intVal(l.Height))
	}
	if floatVal(l.Temperature) != 0.0 || floatVal(l.DewpointDepression) != 7.0 || floatVal(l.Dewpoint) != -7.0 {
		t.Errorf("level thermo = %v/%v/%v, want 0/7/-7",
			floatVal(l.Temperature), floatVal(l.DewpointDepression), floatVal(l.Dewpoint))
	}
	if intVal(l.WindDirection) != 50 || intVal(l.WindSpeed) != 8 {
		t.Errorf("level wind = %v/%v, want 50/8", intVal(l.WindDirection), intVal(l.WindSpeed))
	}

	if s.Tropopause != nil {
		t.Errorf("Tropopause = %+v, want nil", s.Tropopause)
	}
	if s.MaxWind != nil {
		t.Errorf("MaxWind = %+v, want nil", s.MaxWind)
	}
}

func TestDecodeDayWithoutKnotsOffset(t *testing.T) {
	s := Decode("TTAA 23231 03808 99996 07819 17005")
	if intVal(s.Day) != -27 || intVal(s.Hour) != 23 {
		t.Errorf("Day/Hour = %v/%v, want -27/23", intVal(s.Day), intVal(s.Hour))
	}
}

func TestDecodeSpecialClusters(t *testing.T) {
	s := Decode("TTAA 51231 03808 99996 07819 17005 00057 00057 05008 " +
		"85440 10656 24520 88215 52557 27040 77220 27115 31313 58708")

	if len(s.Mandatory) != 2 {
		t.Fatalf("len(Mandatory) = %d, want 2", len(s.Mandatory))
	}
	l := s.Mandatory[1]
	if l.Pressure != 850 || intVal(l.Height) != 1440 {
		t.Errorf("level = %d hPa %v m, want 850 hPa 1440 m", l.Pressure, intVal(l.Height))
	}
	if floatVal(l.Temperature) != 10.6 || floatVal(l.Dewpoint) != 4.6 {
		t.Errorf("level T/Td = %v/%v, want 10.6/4.6", floatVal(l.Temperature), floatVal(l.Dewpoint))
	}
	if intVal(l.WindDirection) != 245 || intVal(l.WindSpeed) != 20 {
		t.Errorf("level wind = %v/%v, want 245/20", intVal(l.WindDirection), intVal(l.WindSpeed))
	}

	wantTrop := &sounding.Tropopause{
		Pressure:           215,
		Temperature:        -52.5,
		Dewpoint:           -59.5,
		DewpointDepression: 7,
		WindDirection:      270,
		WindSpeed:          40,
	}
	if !reflect.DeepEqual(s.Tropopause, wantTrop) {
		t.Errorf("Tropopause = %+v, want %+v", s.Tropopause, wantTrop)
	}

	wantMax := &sounding.MaxWind{Pressure: 220, WindDirection: 270, WindSpeed: 115}
	if !reflect.DeepEqual(s.MaxWind, wantMax) {
		t.Errorf("MaxWind = %+v, want %+v", s.MaxWind, wantMax)
	}
}

func TestDecodeClusters(t *testing.T) {
	const head = "TTAA 51231 03808 99996 07819 17005 "

	tests := []struct {
		name          string
		body          string
		wantPressures []int
		wantTrop      bool
		wantMaxWind   bool
	}{
		{"surface only", "", nil, false, false},
		{"short trailing cluster", "00057 00057", nil, false, false},
		{"short tropopause", "00057 00057 05008 88215 52557", []int{1000}, false, false},
		{"short max wind", "00057 00057 05008 77220", []int{1000}, false, false},
		{"no tropopause observed", "88999 77999 50571 54962 25520", []int{500}, false, false},
		{"66 is a level, not max wind", "66057 00057 05008 50571 54962 25520", []int{660, 500}, false, false},
		{"incomplete tropopause dropped", "88215 ///// 27040 50571 54962 25520", []int{500}, false, false},
		{"complete tropopause", "88215 52557 27040", nil, true, false},
		{"surface indicator in loop discarded", "99996 07819 17005 00057 00057 05008", []int{1000}, false, false},
		{"non-digit pressure discarded", "AB057 00057 05008 92750 05011 06010", []int{925}, false, false},
		{"stops at terminator", "00057 00057 05008 31313 58708 85440 10656 24520", []int{1000}, false, false},
		{"all standard levels", "00057 ///// ///// 92750 ///// ///// 85440 ///// ///// 70030 ///// ///// " +
			"50571 ///// ///// 40740 ///// ///// 30938 ///// ///// 25051 ///// ///// " +
			"20191 ///// ///// 15374 ///// ///// 10640 ///// /////",
			[]int{1000, 925, 850, 700, 500, 400, 300, 250, 200, 150, 100}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Decode(head + tt.body)

			if len(s.Errors) != 0 {
				t.Errorf("unexpected errors: %v", s.Errors)
			}
			var got []int
			for _, l := range s.Mandatory {
				got = append(got, l.Pressure)
			}
			if !reflect.DeepEqual(got, tt.wantPressures) {
				t.Errorf("pressures = %v, want %v", got, tt.wantPressures)
			}
			if (s.Tropopause != nil) != tt.wantTrop {
				t.Errorf("Tropopause = %+v, want present=%v", s.Tropopause, tt.wantTrop)
			}
			if (s.MaxWind != nil) != tt.wantMaxWind {
				t.Errorf("MaxWind = %+v, want present=%v", s.MaxWind, tt.wantMaxWind)
			}
		})
	}
}

func TestDecodeHeights(t *testing.T) {
	s := Decode("TTAA 51231 03808 99996 07819 17005 " +
		"85440 ///// ///// 70030 ///// ///// 50571 ///// ///// 25051 ///// ///// 10640 ///// /////")

	want := map[int]int{850: 1440, 700: 2030, 500: 5710, 250: 10510, 100: 16400}
	for _, l := range s.Mandatory {
		if intVal(l.Height) != want[l.Pressure] {
			t.Errorf("height at %d = %v, want %d", l.Pressure, intVal(l.Height), want[l.Pressure])
		}
		if l.Temperature != nil || l.Dewpoint != nil || l.WindDirection != nil {
			t.Errorf("level %d: placeholders should leave fields absent", l.Pressure)
		}
	}
}

func TestDecodePlaceholderSurface(t *testing.T) {
	s := Decode("TTAA 51231 03808 99996 ///// /////")

	if intVal(s.Surface.Pressure) != 996 {
		t.Errorf("Surface.Pressure = %v, want 996", intVal(s.Surface.Pressure))
	}
	if s.Surface.Temperature != nil || s.Surface.Dewpoint != nil || s.Surface.WindSpeed != nil {
		t.Errorf("Surface = %+v, want only pressure", s.Surface)
	}
	if len(s.Mandatory) != 0 {
		t.Errorf("len(Mandatory) = %d, want 0", len(s.Mandatory))
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantErrs    []error
		wantStation string
	}{
		{"too short", "TTAA 51231 03808", []error{sounding.ErrTooShort}, "03808"},
		{"empty", "", []error{sounding.ErrTooShort}, ""},
		{"bad header", "TTAA 5X231 03808 99996", []error{sounding.ErrHeader}, "03808"},
		{"wrong identifier", "TTBB 51231 03808 99996", []error{sounding.ErrIdentifier}, "03808"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Decode(tt.text)
			if s.Station != tt.wantStation {
				t.Errorf("Station = %q, want %q", s.Station, tt.wantStation)
			}
			if len(s.Errors) != len(tt.wantErrs) {
				t.Fatalf("errors = %v, want %v", s.Errors, tt.wantErrs)
			}
			for i, want := range tt.wantErrs {
				if !errors.Is(s.Errors[i], want) {
					t.Errorf("Errors[%d] = %v, want %v", i, s.Errors[i], want)
				}
				var de *sounding.DecodeError
				if !errors.As(s.Errors[i], &de) || de.Part != Part {
					t.Errorf("Errors[%d] = %v, want *DecodeError for %s", i, s.Errors[i], Part)
				}
			}
		})
	}
}

func TestDecodeIsRepeatable(t *testing.T) {
	const text = "TTAA 51231 03808 99996 07819 17005 00057 00057 05008 88215 52557 27040 31313"
	if a, b := Decode(text), Decode(text); !reflect.DeepEqual(a, b) {
		t.Errorf("Decode() not repeatable:\n%+v\n%+v", a, b)
	}
}

func TestParser(t *testing.T) {
	p := &Parser{}

	if !p.QuickCheck("ttaa 51231") {
		t.Error("QuickCheck() = false for TTAA text")
	}
	if p.QuickCheck("TTBB 51238") {
		t.Error("QuickCheck() = true for TTBB text")
	}

	msg := &bulletin.Message{ID: 42, Timestamp: "2026-10-01T23:00:00Z", Text: "TTAA 51231 03808 99996 07819 17005"}
	result := p.Parse(msg)
	if result == nil {
		t.Fatal("Parse() = nil")
	}
	if result.Type() != "ttaa" || result.MessageID() != 42 {
		t.Errorf("Type/MessageID = %s/%d, want ttaa/42", result.Type(), result.MessageID())
	}
	r := result.(*Result)
	if r.Station != "03808" || len(r.Warnings) != 0 {
		t.Errorf("Result = %+v", r)
	}

	if got := p.Parse(&bulletin.Message{Text: "TTAA"}); got != nil {
		t.Errorf("Parse() without station = %+v, want nil", got)
	}
}

func TestTrace(t *testing.T) {
	s, clusters := Trace("TTAA 51231 03808 99996 07819 17005 00057 00057 05008 " +
		"99850 ///// ///// 88999 77220 27115 31313 58708")

	if len(s.Mandatory) != 1 || s.MaxWind == nil {
		t.Fatalf("Trace() section = %+v", s)
	}

	want := []struct {
		kind  string
		start int
		n     int
	}{
		{KindSurface, 3, 3},
		{KindLevel, 6, 3},
		{KindDiscarded, 9, 3},
		{KindNotObserved, 12, 1},
		{KindMaxWind, 13, 2},
		{KindTerminator, 15, 2},
	}
	if len(clusters) != len(want) {
		t.Fatalf("got %d clusters (%+v), want %d", len(clusters), clusters, len(want))
	}
	for i, w := range want {
		c := clusters[i]
		if c.Kind != w.kind || c.Start != w.start || len(c.Groups) != w.n {
			t.Errorf("clusters[%d] = %s@%d (%d groups), want %s@%d (%d groups)",
				i, c.Kind, c.Start, len(c.Groups), w.kind, w.start, w.n)
		}
	}
}

func TestTraceTruncated(t *testing.T) {
	_, clusters := Trace("TTAA 51231 03808 99996 07819 17005 00057 00057")
	last := clusters[len(clusters)-1]
	if last.Kind != KindTruncated || len(last.Groups) != 2 {
		t.Errorf("last cluster = %+v, want truncated with 2 groups", last)
	}

	p := &Parser{}
	tr := p.ParseWithTrace(&bulletin.Message{Text: "TTBB 51238"})
	if tr.QuickCheck.Passed || tr.Matched {
		t.Errorf("ParseWithTrace() on TTBB text = %+v", tr)
	}
	tr = p.ParseWithTrace(&bulletin.Message{Text: "TTAA 51231 03808"})
	if !tr.Matched || len(tr.Errors) != 1 {
		t.Errorf("ParseWithTrace() on short TTAA = %+v", tr)
	}
}
