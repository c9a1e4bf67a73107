package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dougsko/si4735d/pkg/client"
	"github.com/dougsko/si4735d/pkg/console"
)

var (
	socketPath = flag.String("socket", "/tmp/si4735d.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Raw protocol command to send (e.g., 'STATUS', 'BAND:FM')")
	outputJSON = flag.Bool("json", false, "Print results as JSON")
	help       = flag.Bool("help", false, "Show help")
)

func main() {
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	c := client.NewSocketClient(*socketPath)

	// Raw protocol access, as with nc -U
	if *command != "" {
		response, err := c.SendCommand(*command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s\n", response.String())
		if !response.Success {
			os.Exit(1)
		}
		return
	}

	if !c.IsConnected() {
		fmt.Fprintf(os.Stderr, "Error: si4735d is not running on %s\n", *socketPath)
		os.Exit(1)
	}

	shell := console.New(c)
	shell.OutputJSON = *outputJSON
	if err := shell.Run(flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Println("si4735ctl - si4735d control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]              interactive console\n", os.Args[0])
	fmt.Printf("  %s [options] <command>    run one console command\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/si4735d.sock)")
	fmt.Println("  -cmd <command>    Send a raw protocol command")
	fmt.Println("  -json             Print results as JSON")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  band NAME                 Select a band (FM, MW, SW)")
	fmt.Println("  bands                     List the band table")
	fmt.Println("  up | down                 Step one channel")
	fmt.Println("  scan [up|down]            Step until a station is found")
	fmt.Println("  seek [up|down]            Hardware seek")
	fmt.Println("  tune FREQ                 Tune, 9410 is 94.10 MHz in FM")
	fmt.Println("  measure                   Read signal quality")
	fmt.Println("  rds                       Read one RDS group")
	fmt.Println("  off                       Power the tuner down")
	fmt.Println("  status | rev | history N  Daemon status, chip revision, stored measurements")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s band FM\n", os.Args[0])
	fmt.Printf("  %s -json seek up\n", os.Args[0])
	fmt.Printf("  %s -cmd PROPERTY:get:0x1402\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U /tmp/si4735d.sock\n")
}
