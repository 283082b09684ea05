package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"boxscan/internal/printer"
)

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	common := addCommon(fs, true)
	timeout := fs.Duration("timeout", 1200*time.Millisecond, "status read timeout")
	snmp := fs.Bool("snmp", false, "also query SNMP host resources")
	if err := fs.Parse(args); err != nil {
		return err
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

	fmt.Printf("Printer: %s\n", target.Addr())
	ctx, cancel := context.WithTimeout(context.Background(), *timeout+e.cfg.PrinterDialTimeout)
	defer cancel()
	st, err := e.transport().QueryHostStatus(ctx, target, *timeout)
	if err != nil {
		fmt.Printf("Host status: query yuborildi, lekin javob olinmadi (%v)\n", err)
	} else {
		fmt.Printf("Host status: %s\n", st.Summary())
		if st.LabelsLeft != "" {
			fmt.Printf("Labels remaining in batch: %s\n", st.LabelsLeft)
		}
		preview := strings.TrimSpace(st.Raw)
		if len(preview) > 300 {
			preview = preview[:300] + "..."
		}
		if preview != "" {
			fmt.Printf("Host status response:\n%s\n", preview)
		}
	}

	if !*snmp {
		return nil
	}
	sn, err := printer.QuerySNMP(target.Host, e.cfg.SNMPCommunity, *timeout)
	if err != nil {
		fmt.Printf("SNMP: javob olinmadi (%v)\n", err)
		return nil
	}
	fmt.Printf("SNMP name   : %s\n", sn.Name)
	fmt.Printf("SNMP descr  : %s\n", sn.Description)
	fmt.Printf("SNMP device : %s\n", sn.DeviceStatus)
	fmt.Printf("SNMP printer: %s\n", sn.PrinterStatus)
	return nil
}
