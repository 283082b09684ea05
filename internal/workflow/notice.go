package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"boxscan/internal/assign"
	"boxscan/internal/label"
	"boxscan/internal/labelprint"
	"boxscan/internal/printer"
	"boxscan/internal/resolve"
	"boxscan/internal/vipapi"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is one operator-facing message.
type Notice struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

const (
	msgBoxNotFound     = "Diqqat! %s raqamli quti topilmadi!"
	msgTrackingFailed  = "Trek raqam topilmadi yoki biriktirilgan!"
	msgFillAllFields   = "Diqqat! Barcha maydonlarni to'g'ri to'ldiring!"
	msgVolumeTooSmall  = "Diqqat! O'lcham (volume) 0.001 dan kichik bo'lmasligi kerak!"
	msgPrinterFailed   = "Printerga yuborishda xatolik yuz berdi."
	msgPrinterConnect  = "Printerga ulanib bo'lmadi: %v"
	msgPrinterWrite    = "Printerga yozishda xatolik: %v"
	msgPrinterClosed   = "Printer ulanishni yorliq qabul qilinmasdan yopdi."
	msgUnknownFailure  = "Noma'lum xatolik yuz berdi."
	msgUnauthorized    = "Avtorizatsiya muddati tugagan. Qayta kiring."
	msgPrinterBusy     = "Printer band. Birozdan keyin qayta urinib ko'ring."
	msgLabelPrinted    = "Yorliq printerga yuborildi: %s"
	msgTrackingAdded   = "%s qutiga biriktirildi"
	msgTrackingRemoved = "%s qutidan olib tashlandi"
	msgBoxFinished     = "%s quti yakunlandi"
)

// describe turns any pipeline error into the operator message.
func describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		ve *label.ValidationError
		le *label.LogicalError
		pe *printer.Error
	)
	switch {
	case errors.As(err, &ve):
		return validationMessage(ve, 0)
	case errors.As(err, &le):
		return le.Reason
	case errors.As(err, &pe):
		return printerMessage(pe)
	case errors.Is(err, labelprint.ErrPrinterBusy):
		return msgPrinterBusy
	case errors.Is(err, vipapi.ErrUnauthorized):
		return msgUnauthorized
	case errors.Is(err, assign.ErrNotAssigned),
		errors.Is(err, assign.ErrNoBox),
		errors.Is(err, assign.ErrAlreadyFinished):
		return capitalize(err.Error())
	}

	var te *resolve.TransportError
	if errors.As(err, &te) {
		err = te.Err
	}
	var lt *label.TransportError
	if errors.As(err, &lt) {
		err = lt.Err
	}
	if reason := strings.TrimSpace(vipapi.Reason(err)); reason != "" {
		return reason
	}
	return msgUnknownFailure
}

func printerMessage(pe *printer.Error) string {
	switch {
	case pe.Kind == printer.FailPrematureClose:
		return msgPrinterClosed
	case pe.Err == nil:
		return msgPrinterFailed
	case pe.Kind == printer.FailConnect:
		return fmt.Sprintf(msgPrinterConnect, pe.Err)
	case pe.Kind == printer.FailWrite:
		return fmt.Sprintf(msgPrinterWrite, pe.Err)
	}
	return msgPrinterFailed
}

// validationMessage mirrors the two form messages: a non-positive field
// (volume included) or a positive volume under the minimum.
func validationMessage(ve *label.ValidationError, volume float64) string {
	if ve.Field == "volume" && volume > 0 {
		return msgVolumeTooSmall
	}
	return msgFillAllFields
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func noticef(level Level, at time.Time, format string, args ...any) Notice {
	return Notice{Level: level, Text: fmt.Sprintf(format, args...), At: at}
}
