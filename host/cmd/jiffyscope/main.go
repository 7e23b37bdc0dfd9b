package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"jiffy/core"
	"jiffy/host/serial"
	"jiffy/host/tap"
	"jiffy/protocol"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	stdin   = flag.Bool("stdin", false, "Read the telemetry stream from standard input")
	tui     = flag.Bool("tui", false, "Full-screen live table instead of the console")
	verbose = flag.Bool("verbose", false, "Log link diagnostics to stderr")
)

func main() {
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to build logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		tap.SetLogger(logger)
	}

	var src io.Reader
	var port serial.Port
	if *stdin {
		src = os.Stdin
	} else {
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		p, err := serial.Open(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to open %s: %v\n", *device, err)
			os.Exit(1)
		}
		port = p
		src = p
	}

	reader := tap.NewReader(src)
	reader.Start()
	defer func() {
		reader.Stop()
		if port != nil {
			port.Close()
		}
	}()

	if *tui {
		if err := runTUI(reader); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runConsole(reader)
}

func runConsole(reader *tap.Reader) {
	fmt.Println("jiffyscope - timer telemetry console")
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")

	input := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !input.Scan() {
			break
		}

		line := strings.TrimSpace(input.Text())
		if line == "" {
			continue
		}
		parts, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "stats", "s":
			printStats(reader.Snapshot())

		case "marks":
			printMarks(reader.Snapshot())

		case "link":
			printLink(reader.Snapshot())

		case "watch", "w":
			seconds := 5
			if len(parts) > 1 {
				n, err := strconv.Atoi(parts[1])
				if err != nil || n <= 0 {
					fmt.Fprintf(os.Stderr, "Error: bad duration %q\n", parts[1])
					continue
				}
				seconds = n
			}
			watch(reader, seconds)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}

	if err := input.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  stats, s       - Print the timer table")
	fmt.Println("  marks          - Print recent device annotations")
	fmt.Println("  link           - Print stream health counters")
	fmt.Println("  watch [sec], w - Stream decoded events (default 5s)")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func printStats(table tap.Table) {
	fmt.Println("\n=== Timer Table ===")
	if table.Hz != 0 {
		fmt.Printf("Tick rate: %d Hz\n", table.Hz)
	} else {
		fmt.Println("Tick rate: unknown (no dictionary yet)")
	}
	fmt.Printf("%-4s %-16s %-6s %10s %8s %10s %10s %12s\n",
		"TOK", "NAME", "FLAGS", "FIRES", "LATE", "SEEN", "SEENLATE", "LASTTICK")
	for _, row := range table.Timers {
		fmt.Printf("%-4d %-16s %-6s %10d %8d %10d %10d %12d\n",
			row.Token, rowName(row), flagLetters(row.Flags),
			row.Fires, row.Late, row.SeenFires, row.SeenLate, row.LastTick)
	}
	fmt.Println("===================")
}

func printMarks(table tap.Table) {
	if len(table.Marks) == 0 {
		fmt.Println("No marks received")
		return
	}
	for _, m := range table.Marks {
		fmt.Printf("tick=%-10d %s\n", m.Tick, m.Text)
	}
}

func printLink(table tap.Table) {
	fmt.Printf("frames=%d crc_errors=%d resyncs=%d decode_errors=%d\n",
		table.Frames, table.CRCErrors, table.Resyncs, table.DecodeErrors)
}

func watch(reader *tap.Reader, seconds int) {
	fmt.Printf("Watching for %ds (decoded events)...\n", seconds)
	deadline := time.After(time.Duration(seconds) * time.Second)
	for {
		select {
		case ev := <-reader.Events():
			printEvent(ev)
		case <-deadline:
			return
		case <-reader.Done():
			fmt.Println("Stream ended")
			return
		}
	}
}

func printEvent(ev any) {
	switch v := ev.(type) {
	case protocol.FireReport:
		late := ""
		if int32(v.Wake-v.Tick) < 0 {
			late = " late"
		}
		fmt.Printf("fire  tok=%-3d tick=%-10d wake=%-10d%s\n", v.Token, v.Tick, v.Wake, late)
	case protocol.StatsReport:
		fmt.Printf("stats tok=%-3d fires=%-8d late=%-6d last=%d\n", v.Token, v.Fires, v.Late, v.LastTick)
	case protocol.DictEntry:
		fmt.Printf("dict  tok=%-3d name=%s flags=%s hz=%d\n", v.Token, v.Name, flagLetters(v.Flags), v.TickHz)
	case protocol.MarkReport:
		fmt.Printf("mark  tick=%-10d %q\n", v.Tick, v.Text)
	}
}

func rowName(row tap.TimerStat) string {
	if row.Name != "" {
		return row.Name
	}
	if row.Token == protocol.TokenEmitter {
		return "(emitter)"
	}
	return "(unnamed)"
}

// flagLetters renders the dictionary flag bits the way the device sets
// them: P pinned, D deferrable, I irq-safe.
func flagLetters(flags uint8) string {
	var b strings.Builder
	if flags&uint8(core.TimerPinned) != 0 {
		b.WriteByte('P')
	}
	if flags&uint8(core.TimerDeferrable) != 0 {
		b.WriteByte('D')
	}
	if flags&uint8(core.TimerIRQSafe) != 0 {
		b.WriteByte('I')
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}
