package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"boxscan/internal/labelprint"
	"boxscan/internal/printer"
)

const maxSendBytes = 8 << 20

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	common := addCommon(fs, true)
	file := fs.String("file", "-", "ZPL file to send, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	payload, err := readPayload(*file)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return errors.New("payload bo'sh")
	}

	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()

	target, err := e.target(common)
	if err != nil {
		return err
	}
	if !printer.LooksLikeZPL(string(payload)) {
		fmt.Println("Ogohlantirish: payload ^XA..^XZ ko'rinishida emas, baribir yuborilmoqda.")
	}
	return sendPayload(e, target, payload)
}

func readPayload(path string) ([]byte, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(io.LimitReader(r, maxSendBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxSendBytes {
		return nil, fmt.Errorf("payload %d baytdan katta", maxSendBytes)
	}
	return b, nil
}

// sendPayload goes through the same per-printer lock as the workstation.
func sendPayload(e *env, target printer.Target, payload []byte) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := labelprint.New(nil, e.transport(), e.store, e.log).
		WithOverride(target.Host, target.Port).
		WithLockDir(e.lockDir())

	fmt.Printf("Printer: %s\n", target.Addr())
	out, err := svc.SendRaw(ctx, payload)
	if err != nil {
		var pe *printer.Error
		if errors.As(err, &pe) {
			return fmt.Errorf("%s (%s)", pe.Error(), pe.Kind)
		}
		return err
	}
	fmt.Printf("Yuborildi: %d bayt, %s, job=%s\n", out.Bytes, out.Elapsed.Round(time.Millisecond), out.JobID)
	return nil
}
