package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"boxscan/internal/printer"
	"boxscan/internal/session"
)

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	common := addCommon(fs, false)
	wait := fs.Duration("wait", 3*time.Second, "how long to listen for mDNS answers")
	save := fs.Int("save", 0, "save result N (1-based) as the workstation printer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *wait+time.Second)
	defer cancel()
	found, err := printer.Discover(ctx, *wait)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Printf("%s xizmati topilmadi.\n", printer.RawService)
		return nil
	}
	for i, f := range found {
		fmt.Printf("%d) %s  %s\n", i+1, f.Target().Addr(), f.Instance)
	}

	if *save == 0 {
		return nil
	}
	if *save < 1 || *save > len(found) {
		return fmt.Errorf("--save 1..%d oralig'ida bo'lsin", len(found))
	}
	e, err := common.open()
	if err != nil {
		return err
	}
	defer e.Close()
	pick := found[*save-1]
	if err := e.store.SetPrinter(session.PrinterConfig{Host: pick.Host, Port: pick.Port}); err != nil {
		return err
	}
	fmt.Printf("Saqlandi: %s\n", pick.Target().Addr())
	return nil
}
