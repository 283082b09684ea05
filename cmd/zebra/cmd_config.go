package main

import (
	"flag"
	"fmt"
	"strings"

	"boxscan/internal/session"
)

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	common := addCommon(fs, false)
	setHost := fs.String("set-host", "", "save printer host")
	setPort := fs.Int("set-port", 0, "save printer port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()

	if strings.TrimSpace(*setHost) != "" || *setPort != 0 {
		cur, err := e.store.Printer()
		if err != nil {
			return err
		}
		next := cur
		if h := strings.TrimSpace(*setHost); h != "" {
			next.Host = h
		}
		if *setPort != 0 {
			next.Port = *setPort
		}
		if err := e.store.SetPrinter(next); err != nil {
			return err
		}
		fmt.Printf("Saqlandi: %s\n", next.Addr())
	}

	saved, err := e.store.Printer()
	if err != nil {
		return err
	}
	fmt.Printf("State      : %s (%s)\n", e.cfg.StatePath, e.cfg.StateBackend)
	fmt.Printf("Printer    : %s\n", saved.Addr())
	if saved == session.DefaultPrinter() {
		fmt.Println("             (standart qiymat)")
	}
	if h := strings.TrimSpace(e.cfg.PrinterHost); h != "" {
		fmt.Printf("Override   : %s:%d (PRINTER_HOST/PRINTER_PORT)\n", h, e.cfg.PrinterPort)
	}
	fmt.Printf("Timeouts   : dial=%s write=%s drain=%s\n", e.cfg.PrinterDialTimeout, e.cfg.PrinterWriteTimeout, e.cfg.PrinterDrainTimeout)
	fmt.Printf("API        : %s\n", e.cfg.APIURL)
	return nil
}
