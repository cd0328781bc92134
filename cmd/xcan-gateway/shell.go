package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// runShell reads line-oriented host commands until stop or EOF:
//
//	create-device <name> <socketcan|serial|loopback> [iface|path] [baud]
//	run
//	stop
//
// The gateway does not tick until run is issued, so a host can build
// its device set first and then open the floodgates.
func runShell(g *gateway, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "create-device":
			if err := shellCreateDevice(g, fields[1:]); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "ok")
		case "run":
			g.run()
			fmt.Fprintln(out, "ok")
		case "stop":
			g.shutdown()
			fmt.Fprintln(out, "ok")
			return
		default:
			fmt.Fprintf(out, "error: unknown command %q (create-device|run|stop)\n", fields[0])
		}
	}
	// EOF without an explicit stop still tears the gateway down.
	g.shutdown()
}

func shellCreateDevice(g *gateway, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create-device <name> <socketcan|serial|loopback> [iface|path] [baud]")
	}
	// Shell order is name-first; reuse the flag spec parser by
	// reassembling its type-first form.
	parts := []string{args[1], args[0]}
	parts = append(parts, args[2:]...)
	spec, err := parseDeviceSpec(strings.Join(parts, ":"))
	if err != nil {
		return err
	}
	_, err = g.createDevice(spec)
	return err
}
