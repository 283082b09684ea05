package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		exitErr(errors.New("buyruq berilmadi"))
	}

	cmd := strings.ToLower(strings.TrimSpace(os.Args[1]))
	args := os.Args[2:]

	var err error
	switch cmd {
	case "send":
		err = runSend(args)
	case "print-test":
		err = runPrintTest(args)
	case "status":
		err = runStatus(args)
	case "discover", "list":
		err = runDiscover(args)
	case "config", "settings":
		err = runConfig(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("noma'lum buyruq: %s", cmd)
	}
	if err != nil {
		exitErr(err)
	}
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
