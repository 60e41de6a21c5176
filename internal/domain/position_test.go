package domain

import (
	"encoding/xml"
	"errors"
	"math"
	"testing"
)

func TestPositionNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Position
		want Position
	}{
		{"already normal", NewPosition(10, 20), NewPosition(10, 20)},
		{"longitude wraps", NewPosition(10, 200), NewPosition(10, -160)},
		{"over the north pole", NewPosition(100, 10), NewPosition(80, -170)},
		{"over the south pole", NewPosition(-95, -20), NewPosition(-85, 160)},
		{"full turn of latitude", NewPosition(370, 5), NewPosition(10, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if !got.EqualDecimals(tt.want, 9) {
				t.Errorf("Normalize() = %s, want %s", got.DecimalString(), tt.want.DecimalString())
			}
			if !got.IsNormalized() {
				t.Errorf("Normalize() = %s is not normalized", got.DecimalString())
			}
		})
	}

	if !InvalidPosition.Normalize().IsInvalid() {
		t.Error("invalid position should stay invalid")
	}
}

func TestPositionSentinels(t *testing.T) {
	if !EmptyPosition.IsEmpty() || EmptyPosition.IsInvalid() {
		t.Error("EmptyPosition misreports its state")
	}
	if !InvalidPosition.IsInvalid() || InvalidPosition.IsEmpty() {
		t.Error("InvalidPosition misreports its state")
	}
	if !InvalidPosition.Equal(InvalidPosition) {
		t.Error("invalid positions should compare equal")
	}
	half := Position{Latitude: 12, Longitude: InvalidLongitude}
	if !half.IsInvalid() {
		t.Error("one invalid component makes the position invalid")
	}
}

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in   string
		loc  Locale
		want Position
	}{
		{"39.7391,-104.9847", InvariantLocale, NewPosition(39.7391, -104.9847)},
		{" 39.7391 , -104.9847 ", InvariantLocale, NewPosition(39.7391, -104.9847)},
		{"39,7391;-104,9847", GermanLocale, NewPosition(39.7391, -104.9847)},
		{`39°44'20.8"N 104°59'4.9"W`, InvariantLocale, NewPosition(39.7391, -104.9847)},
		{"39 44 20.8 N, 104 59 4.9 W", InvariantLocale, NewPosition(39.7391, -104.9847)},
		{"N39.5 W104.5", InvariantLocale, NewPosition(39.5, -104.5)},
		{"S 33.8688 E 151.2093", InvariantLocale, NewPosition(-33.8688, 151.2093)},
		{"-33.8688 151.2093", InvariantLocale, NewPosition(-33.8688, 151.2093)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in, tt.loc)
			if err != nil {
				t.Fatalf("ParsePosition() error = %v", err)
			}
			if !got.EqualDecimals(tt.want, 4) {
				t.Errorf("ParsePosition() = %s, want %s", got.DecimalString(), tt.want.DecimalString())
			}
		})
	}
}

func TestParsePositionErrors(t *testing.T) {
	for _, in := range []string{"", "39.7", "1,2,3", "north,east", "1 2 3", "12x,4"} {
		t.Run(in, func(t *testing.T) {
			p, err := ParsePosition(in, InvariantLocale)
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("ParsePosition(%q) error = %v, want ErrFormat", in, err)
			}
			if !p.IsInvalid() {
				t.Errorf("ParsePosition(%q) = %v, want invalid", in, p)
			}
		})
	}

	if !ParsePositionOrInvalid("nowhere", InvariantLocale).IsInvalid() {
		t.Error("ParsePositionOrInvalid should return the invalid sentinel")
	}
}

func TestPositionStrings(t *testing.T) {
	p := NewPosition(39.7391, -104.9847)
	if got, want := p.String(), `39°44'20.8"N 104°59'4.9"W`; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := p.DecimalString(), "39.7391,-104.9847"; got != want {
		t.Errorf("DecimalString() = %q, want %q", got, want)
	}
	if got := InvalidPosition.String(); got != "Invalid" {
		t.Errorf("String() = %q, want Invalid", got)
	}

	// String output parses back to the same position at its precision.
	back, err := ParsePosition(p.String(), InvariantLocale)
	if err != nil {
		t.Fatalf("ParsePosition(String()) error = %v", err)
	}
	if !back.EqualDecimals(p, 4) {
		t.Errorf("round trip = %s", back.DecimalString())
	}
}

func TestPositionMarshalXML(t *testing.T) {
	type place struct {
		XMLName xml.Name `xml:"place"`
		Where   Position `xml:"where"`
	}

	out, err := xml.Marshal(place{Where: NewPosition(39.7391, -104.9847)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := "<place><where><pos>-104.9847 39.7391</pos></where></place>"
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}

	var back place
	if err := xml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Where.Equal(NewPosition(39.7391, -104.9847)) {
		t.Errorf("Unmarshal() = %s", back.Where.DecimalString())
	}
}

func TestPositionUnmarshalXMLForms(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"pos", "<Point><pos>8.5 47.25</pos></Point>"},
		{"coordinates", "<Point><coordinates>8.5,47.25</coordinates></Point>"},
		{"coordinates with height", "<Point><coordinates>8.5,47.25,410</coordinates></Point>"},
		{"coord", "<Point><coord><X>8.5</X><Y>47.25</Y></coord></Point>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Position
			if err := xml.Unmarshal([]byte(tt.doc), &p); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if !p.Equal(NewPosition(47.25, 8.5)) {
				t.Errorf("Unmarshal() = %s, want 47.25,8.5", p.DecimalString())
			}
		})
	}

	for _, doc := range []string{
		"<Point></Point>",
		"<Point><pos>8.5</pos></Point>",
		"<Point><pos>east north</pos></Point>",
		"<Point><coordinates>8.5</coordinates></Point>",
	} {
		var p Position
		if err := xml.Unmarshal([]byte(doc), &p); !errors.Is(err, ErrFormat) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrFormat", doc, err)
		}
	}
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Position
		wantErr bool
	}{
		{"valid", NewPosition(45, 90), false},
		{"boundary", NewPosition(-90, -180), false},
		{"latitude too large", NewPosition(91, 0), true},
		{"longitude too small", NewPosition(0, -181), true},
		{"infinite", NewPosition(math.Inf(1), 0), true},
		{"invalid", InvalidPosition, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Validate() error = %T, want *ValidationError", err)
				}
			}
		})
	}
}
