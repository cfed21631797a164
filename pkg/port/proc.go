package port

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// tcpListenState is the st column value for LISTEN in /proc/net/tcp.
const tcpListenState = "0A"

var procNetFiles = []string{"/proc/net/tcp", "/proc/net/tcp6"}

// ListeningPorts returns the set of local TCP ports currently in the LISTEN
// state, read from the kernel's socket tables. Both IPv4 and IPv6 tables are
// consulted; a missing tcp6 table (IPv6 disabled) is not an error.
func ListeningPorts() (map[int]bool, error) {
	ports := make(map[int]bool)

	for i, path := range procNetFiles {
		f, err := os.Open(path)
		if err != nil {
			if i > 0 && os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		if err := scanListeners(f, ports); err != nil {
			f.Close()
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		f.Close()
	}

	return ports, nil
}

// scanListeners parses /proc/net/tcp format lines into the ports set.
// Each entry looks like:
//
//	sl  local_address rem_address   st ...
//	 0: 00000000:ABE0 00000000:0000 0A ...
func scanListeners(r io.Reader, ports map[int]bool) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			// header row
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if fields[3] != tcpListenState {
			continue
		}
		parts := strings.Split(fields[1], ":")
		if len(parts) != 2 {
			continue
		}
		p, err := strconv.ParseInt(parts[1], 16, 32)
		if err != nil {
			return fmt.Errorf("bad port field %q: %w", parts[1], err)
		}
		ports[int(p)] = true
	}
	return scanner.Err()
}
