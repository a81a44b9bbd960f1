package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/hapble/peripheral/internal/log"
	"github.com/hapble/peripheral/pkg/cli"
	"github.com/hapble/peripheral/pkg/connector/ble/goble"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/platform"
	"github.com/hapble/peripheral/pkg/protocol"
	"github.com/hapble/peripheral/pkg/runloop"
	"github.com/hapble/peripheral/pkg/timer"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Without COMMAND the accessory advertises and reads commands from standard input.
 * Commands starting with central- play the central and require -simulate.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] [COMMAND [ARG...]]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	labels := commandNames()
	for _, command := range labels {
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(loop *runloop.Loop, s *Session, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	if doErr := loop.Do(ctx, func() { err = execute(s, args) }); doErr != nil {
		err = doErr
	}
	if err != nil {
		if errors.Is(err, ErrCommandLineArgs) || errors.Is(err, ErrUnknownCommand) {
			writeErr("Invalid command: %s", err)
		} else if protocol.ShouldRetry(err) {
			writeErr("Command failed, try again: %s", err)
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(loop *runloop.Loop, s *Session, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if args[0] == "help" {
			help(args[1:])
			continue
		}
		runCommand(loop, s, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func help(args []string) bool {
	if len(args) == 0 {
		Usage()
		return true
	}
	info, ok := commands[args[0]]
	if !ok {
		writeErr("Unrecognized command: %s", args[0])
		return false
	}
	info.Usage(os.Stdout, args[0])
	return true
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		commandTimeout time.Duration
		initTimeout    time.Duration
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		return
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.DurationVar(&commandTimeout, "command-timeout", 5*time.Second, "Set timeout for shell commands.")
	flag.DurationVar(&initTimeout, "init-timeout", 10*time.Second, "Set timeout for bringing up the Bluetooth controller.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if !debug {
		if debugEnv, ok := os.LookupEnv("HAP_BLE_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()
	if err := config.Validate(); err != nil {
		writeErr("Invalid configuration: %s", err)
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "help" {
		if help(args[1:]) {
			status = 0
		}
		return
	}

	store, err := config.OpenStore()
	if err != nil {
		writeErr("Error opening key-value store: %s", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := runloop.New(0)
	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Run loop stopped: %s", err)
		}
	}()
	defer loop.Stop()

	clock := platform.NewClock()
	timers := timer.NewRegistry(clock, loop)
	accessory := NewAccessory(config.DeviceName, store, clock, platform.Random{}, timers)
	stack := config.Stack(loop)
	// Attach and OnReady may both report.
	ready := make(chan error, 2)

	var manager *peripheral.Manager
	initCtx, initCancel := context.WithTimeout(ctx, initTimeout)
	defer initCancel()
	err = loop.Do(initCtx, func() {
		manager = peripheral.New(stack, peripheral.Options{
			Capacity: config.Capacity,
			OnReady: func() {
				ready <- accessory.Start(config.AdvertisingInterval)
			},
		})
		if err := accessory.Attach(manager); err != nil {
			ready <- err
		}
	})
	if err == nil {
		select {
		case err = <-ready:
		case <-initCtx.Done():
			err = fmt.Errorf("bluetooth controller did not come up: %w", initCtx.Err())
		}
	}
	if err != nil {
		writeErr("Error: %s", err)
		if !config.Simulate {
			writeErr("\n%s", goble.AdapterErrorHelpMessage(err))
		}
		return
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), commandTimeout)
		defer shutdownCancel()
		if err := loop.Do(shutdownCtx, func() { manager.SetDelegate(nil) }); err != nil {
			log.Warning("Shutdown failed: %s", err)
		}
	}()

	session := &Session{
		accessory: accessory,
		manager:   manager,
		store:     store,
		stack:     stack,
		interval:  config.AdvertisingInterval,
		out:       os.Stdout,
	}
	if len(args) > 0 {
		status = runCommand(loop, session, args, commandTimeout)
		return
	}
	fmt.Printf("%s is advertising. Type help for a list of commands.\n", config.DeviceName)
	status = runInteractiveShell(loop, session, commandTimeout)
}
