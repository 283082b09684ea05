package vipapi

import "strings"

// Nullable numeric fields decode to zero.

type Tracking struct {
	ID             int64   `json:"id"`
	TrackingNumber string  `json:"trackingNumber"`
	ClientCode     string  `json:"clientCode,omitempty"`
	Weight         float64 `json:"weight"`
	Length         float64 `json:"length"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Volume         float64 `json:"volume"`
	Status         string  `json:"status"`
	PackingType    string  `json:"packingType,omitempty"`
	BoxID          *int64  `json:"boxId"`
}

// AssignedTo reports whether the tracking currently references boxID.
func (t Tracking) AssignedTo(boxID int64) bool {
	return t.BoxID != nil && *t.BoxID == boxID
}

type Box struct {
	ID           int64      `json:"id"`
	BoxNo        string     `json:"boxNo"`
	Status       string     `json:"status"`
	OnceNo       string     `json:"onceNo,omitempty"`
	Weight       float64    `json:"weight"`
	WaybillCount int        `json:"waybillCount"`
	Length       float64    `json:"length"`
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	Volume       float64    `json:"volume"`
	IsActive     bool       `json:"isActive"`
	Waybills     []Tracking `json:"waybills"`
}

// Waybill returns the listed tracking with the given number.
func (b Box) Waybill(trackingNumber string) (Tracking, bool) {
	for _, w := range b.Waybills {
		if strings.EqualFold(w.TrackingNumber, trackingNumber) {
			return w, true
		}
	}
	return Tracking{}, false
}

// BoxDetail is both the unified lookup answer and the label generation body.
// TrackingNumber is set when the code resolved to a tracking.
type BoxDetail struct {
	BoxNo          string  `json:"boxNo"`
	TrackingNumber string  `json:"trackingNumber,omitempty"`
	Weight         float64 `json:"weight"`
	WaybillCount   int     `json:"waybillCount"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Length         float64 `json:"length"`
	Volume         float64 `json:"volume"`
}

// GenerateResult is the label service answer. A non-empty ErrorReason is a
// logical failure even on HTTP 200.
type GenerateResult struct {
	Result      string `json:"Результат"`
	ErrorReason string `json:"ПричинаОшибки"`
	ZPL         string `json:"ZplFile"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

type assignRequest struct {
	TrackingNumber string `json:"trackingNumber"`
	Unassign       bool   `json:"unassign"`
}
