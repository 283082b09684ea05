package label

import (
	"context"
	"errors"
	"testing"

	"boxscan/internal/vipapi"
)

func TestVolume(t *testing.T) {
	cases := []struct {
		l, w, h float64
		want    string
	}{
		{80, 50, 70, "0.280"},
		{10, 10, 10, "0.001"},
		{1, 1, 1, "0.000"},
		{33.3, 21.7, 15.2, "0.011"},
		{120, 80, 100, "0.960"},
	}
	for _, tc := range cases {
		if got := FormatVolume(Volume(tc.l, tc.w, tc.h)); got != tc.want {
			t.Fatalf("Volume(%v,%v,%v) = %s, want %s", tc.l, tc.w, tc.h, got, tc.want)
		}
	}
}

func TestFormDefaultsAndRecompute(t *testing.T) {
	f := NewForm(" BX-1 ")
	p := f.Params()
	if p.BoxNo != "BX-1" || p.Width != 50 || p.Height != 70 || p.Length != 80 || p.WaybillCount != 1 {
		t.Fatalf("defaults mismatch: %+v", p)
	}
	if FormatVolume(p.Volume) != "0.280" {
		t.Fatalf("default volume mismatch: %v", p.Volume)
	}

	f.SetLength(100)
	if FormatVolume(f.Params().Volume) != "0.350" {
		t.Fatalf("volume not recomputed: %v", f.Params().Volume)
	}
	if err := f.Set("height", "10,6"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if FormatVolume(f.Params().Volume) != "0.053" {
		t.Fatalf("volume after comma input: %v", f.Params().Volume)
	}
	if err := f.Set("colour", "1"); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if err := f.Set("weight", "abc"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFormFromDetail(t *testing.T) {
	f := FormFromDetail(vipapi.BoxDetail{BoxNo: "BX-2", Weight: 4.2, WaybillCount: 3, Length: 40})
	p := f.Params()
	if p.Weight != 4.2 || p.WaybillCount != 3 || p.Length != 40 || p.Width != 50 || p.Height != 70 {
		t.Fatalf("prefill mismatch: %+v", p)
	}
	if FormatVolume(p.Volume) != "0.140" {
		t.Fatalf("volume mismatch: %v", p.Volume)
	}

	f = FormFromDetail(vipapi.BoxDetail{BoxNo: "BX-2", TrackingNumber: "TRK-9", Weight: 1})
	if f.Params().BoxNo != "TRK-9" {
		t.Fatalf("tracking should identify the label: %q", f.Params().BoxNo)
	}
}

func validParams() Params {
	return Params{BoxNo: "BX-1", Length: 80, Width: 50, Height: 70, Weight: 2, WaybillCount: 1, Volume: 0.28}
}

func TestValidate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	cases := map[string]func(*Params){
		"boxNo":        func(p *Params) { p.BoxNo = " " },
		"length":       func(p *Params) { p.Length = 0 },
		"width":        func(p *Params) { p.Width = -1 },
		"height":       func(p *Params) { p.Height = 0 },
		"weight":       func(p *Params) { p.Weight = 0 },
		"waybillCount": func(p *Params) { p.WaybillCount = 0 },
		"volume":       func(p *Params) { p.Volume = 0.0009 },
	}
	for field, mutate := range cases {
		p := validParams()
		mutate(&p)
		var ve *ValidationError
		if err := p.Validate(); !errors.As(err, &ve) || ve.Field != field {
			t.Fatalf("%s: expected ValidationError, got %v", field, err)
		}
	}
}

type fakeAPI struct {
	calls int
	res   vipapi.GenerateResult
	err   error
	got   vipapi.BoxDetail
}

func (f *fakeAPI) GenerateLabel(_ context.Context, d vipapi.BoxDetail) (vipapi.GenerateResult, error) {
	f.calls++
	f.got = d
	return f.res, f.err
}

func TestGenerateInvalidMakesNoCall(t *testing.T) {
	dims := [][3]float64{
		{1, 1, 1},
		{10, 10, 5},
		{10, 10, 9.99},
	}
	for _, d := range dims {
		api := &fakeAPI{}
		p := validParams()
		p.Length, p.Width, p.Height = d[0], d[1], d[2]
		p.Volume = Volume(d[0], d[1], d[2])

		_, err := NewClient(api, nil).Generate(context.Background(), p)
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Field != "volume" {
			t.Fatalf("%v: expected volume ValidationError, got %v", d, err)
		}
		if api.calls != 0 {
			t.Fatalf("%v: network call made for invalid params", d)
		}
	}
}

func TestFormRejectsVolumeRoundedUpToMinimum(t *testing.T) {
	f := NewForm("BX-1")
	f.SetWeight(1)
	f.SetLength(10)
	f.SetWidth(10)
	f.SetHeight(5)
	p := f.Params()
	if p.Volume != 0.001 {
		t.Fatalf("displayed volume mismatch: %v", p.Volume)
	}
	var ve *ValidationError
	if err := p.Validate(); !errors.As(err, &ve) || ve.Field != "volume" {
		t.Fatalf("expected volume ValidationError, got %v", err)
	}

	f.SetHeight(10)
	if err := f.Params().Validate(); err != nil {
		t.Fatalf("exact minimum rejected: %v", err)
	}
}

func TestGenerateOutcomes(t *testing.T) {
	api := &fakeAPI{res: vipapi.GenerateResult{Result: "OK", ZPL: "^XA^FDBX-1^FS^XZ"}}
	c := NewClient(api, nil)

	pl, err := c.Generate(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if pl.BoxNo != "BX-1" || pl.ZPL != "^XA^FDBX-1^FS^XZ" {
		t.Fatalf("payload mismatch: %+v", pl)
	}
	if api.got.Volume != 0.28 || api.got.Width != 50 {
		t.Fatalf("request mismatch: %+v", api.got)
	}

	api.res = vipapi.GenerateResult{Result: "Ошибка", ErrorReason: "Коробка не найдена", ZPL: "^XA^XZ"}
	_, err = c.Generate(context.Background(), validParams())
	var le *LogicalError
	if !errors.As(err, &le) || le.Reason != "Коробка не найдена" {
		t.Fatalf("expected LogicalError, got %v", err)
	}

	api.res = vipapi.GenerateResult{Result: "OK"}
	if _, err := c.Generate(context.Background(), validParams()); !errors.As(err, &le) {
		t.Fatalf("expected LogicalError for empty zpl, got %v", err)
	}

	api.err = errors.New("connection reset")
	_, err = c.Generate(context.Background(), validParams())
	var te *TransportError
	if !errors.As(err, &te) || errors.As(err, &le) {
		t.Fatalf("expected TransportError only, got %v", err)
	}
}
