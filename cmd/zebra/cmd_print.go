package main

import (
	"flag"
	"fmt"
	"time"

	"boxscan/internal/printer"
)

const maxPrintCopies = 20

func runPrintTest(args []string) error {
	fs := flag.NewFlagSet("print-test", flag.ContinueOnError)
	common := addCommon(fs, true)
	message := fs.String("message", "BOXSCAN TEST", "line text to print")
	copies := fs.Int("copies", 1, "label copies")
	dryRun := fs.Bool("dry-run", false, "show ZPL only, do not send")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *copies < 1 {
		*copies = 1
	}
	if *copies > maxPrintCopies {
		return fmt.Errorf("copies %d dan ko'p bo'lmasin", maxPrintCopies)
	}

	stream := printer.BuildTestLabelZPL(*message, *copies, time.Now())
	fmt.Printf("Action : print-test (copies=%d, dry-run=%v)\n", *copies, *dryRun)
	if *dryRun {
		fmt.Println("--- ZPL preview ---")
		fmt.Println(stream)
		return nil
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
	if err := sendPayload(e, target, []byte(stream)); err != nil {
		return err
	}
	fmt.Println("Test label yuborildi.")
	return nil
}
