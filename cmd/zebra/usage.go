package main

import "fmt"

func printUsage() {
	fmt.Println("Zebra network tool (boxscan/zebra)")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  zebra send [--host IP] [--port 9100] [--file label.zpl|-]")
	fmt.Println("  zebra print-test [--host IP] [--port 9100] [--message TEXT] [--copies 1] [--dry-run]")
	fmt.Println("  zebra status [--host IP] [--port 9100] [--timeout 1.2s] [--snmp]")
	fmt.Println("  zebra discover [--wait 3s] [--save N]")
	fmt.Println("  zebra config [--set-host IP] [--set-port 9100]")
	fmt.Println()
	fmt.Println("Common flags: --env .env  --config boxscan.toml")
	fmt.Println("Printer: --host/--port, then PRINTER_HOST/PRINTER_PORT, then the saved workstation printer.")
}
