package label

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"boxscan/internal/vipapi"
)

// MinVolume is the smallest box volume (m³) the label service accepts.
const MinVolume = 0.001

// Defaults for a freshly opened form, in centimetres.
const (
	DefaultWidth        = 50
	DefaultHeight       = 70
	DefaultLength       = 80
	DefaultWaybillCount = 1
)

// Params describe one box label. BoxNo is the scanned identifier, a box
// number or a tracking number. Dimensions are centimetres, weight is kg,
// Volume is m³.
type Params struct {
	BoxNo        string
	Length       float64
	Width        float64
	Height       float64
	Weight       float64
	WaybillCount int
	Volume       float64
}

// Volume converts cm dimensions to m³ rounded to three decimals.
func Volume(length, width, height float64) float64 {
	return RoundVolume(length * width * height / 1_000_000)
}

func RoundVolume(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func FormatVolume(v float64) string {
	return strconv.FormatFloat(RoundVolume(v), 'f', 3, 64)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validate checks params before any network call.
func (p Params) Validate() error {
	if strings.TrimSpace(p.BoxNo) == "" {
		return &ValidationError{Field: "boxNo", Reason: "bo'sh"}
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"length", p.Length},
		{"width", p.Width},
		{"height", p.Height},
		{"weight", p.Weight},
		{"waybillCount", float64(p.WaybillCount)},
	}
	for _, f := range positive {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v <= 0 {
			return &ValidationError{Field: f.name, Reason: "0 dan katta bo'lishi kerak"}
		}
	}
	// The minimum applies to the exact volume; 10x10x5 cm rounds up to 0.001.
	exact := p.Length * p.Width * p.Height / 1_000_000
	if exact < MinVolume || p.Volume < MinVolume {
		return &ValidationError{Field: "volume", Reason: fmt.Sprintf("%s dan kichik bo'lmasligi kerak", FormatVolume(MinVolume))}
	}
	return nil
}

// Detail is the request body for label generation.
func (p Params) Detail() vipapi.BoxDetail {
	return vipapi.BoxDetail{
		BoxNo:        strings.TrimSpace(p.BoxNo),
		Weight:       p.Weight,
		WaybillCount: p.WaybillCount,
		Width:        p.Width,
		Height:       p.Height,
		Length:       p.Length,
		Volume:       RoundVolume(p.Volume),
	}
}

// Form is the editable label form. Volume always follows the dimensions.
type Form struct {
	p Params
}

func NewForm(boxNo string) *Form {
	f := &Form{p: Params{
		BoxNo:        strings.TrimSpace(boxNo),
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		Length:       DefaultLength,
		WaybillCount: DefaultWaybillCount,
	}}
	f.recompute()
	return f
}

// FormFromDetail prefills a form from a lookup answer. A tracking number
// takes the place of the box number. Missing dimensions keep the defaults.
func FormFromDetail(d vipapi.BoxDetail) *Form {
	id := strings.TrimSpace(d.TrackingNumber)
	if id == "" {
		id = strings.TrimSpace(d.BoxNo)
	}
	f := NewForm(id)
	if d.Weight > 0 {
		f.p.Weight = d.Weight
	}
	if d.WaybillCount > 0 {
		f.p.WaybillCount = d.WaybillCount
	}
	if d.Length > 0 {
		f.p.Length = d.Length
	}
	if d.Width > 0 {
		f.p.Width = d.Width
	}
	if d.Height > 0 {
		f.p.Height = d.Height
	}
	f.recompute()
	return f
}

func (f *Form) Params() Params { return f.p }

func (f *Form) SetLength(v float64) { f.p.Length = v; f.recompute() }
func (f *Form) SetWidth(v float64)  { f.p.Width = v; f.recompute() }
func (f *Form) SetHeight(v float64) { f.p.Height = v; f.recompute() }
func (f *Form) SetWeight(v float64) { f.p.Weight = v }
func (f *Form) SetWaybillCount(n int) {
	f.p.WaybillCount = n
}

// Set updates a field by name from operator text. Unknown fields and
// unparsable numbers are errors.
func (f *Form) Set(field, raw string) error {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if field == "waybillCount" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &ValidationError{Field: field, Reason: "butun son emas"}
		}
		f.SetWaybillCount(n)
		return nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return &ValidationError{Field: field, Reason: "son emas"}
	}
	switch field {
	case "length":
		f.SetLength(v)
	case "width":
		f.SetWidth(v)
	case "height":
		f.SetHeight(v)
	case "weight":
		f.SetWeight(v)
	default:
		return &ValidationError{Field: field, Reason: "noma'lum maydon"}
	}
	return nil
}

// Fields lists the editable fields in form order.
func Fields() []string {
	return []string{"weight", "waybillCount", "length", "width", "height"}
}

func (f *Form) recompute() {
	f.p.Volume = Volume(f.p.Length, f.p.Width, f.p.Height)
}
