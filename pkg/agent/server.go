package agent

import (
	"fmt"
	"net"
	"os"

	"github.com/grovetools/hpcode/command"
	"github.com/grovetools/hpcode/errors"
)

// hardenedFlags are fixed, not user-configurable. The scheduler's allocation
// is the access-control boundary, so the server's own auth is off, and the
// interactive prompts that assume a desktop session are disabled.
var hardenedFlags = []string{
	"--auth", "none",
	"--disable-telemetry",
	"--disable-update-check",
	"--disable-workspace-trust",
}

// Server is a started editor server process.
type Server struct {
	Proc   Process
	Addr   string
	exited chan error
}

// Exited fires exactly once when the server process has finished.
func (s *Server) Exited() <-chan error { return s.exited }

// StartServer launches the editor server bound to addr. Server stdout and
// stderr go to the agent's stderr, which the scheduler captures into the job
// log without touching the stdout address line.
func StartServer(exec command.Executor, binary, addr string, extraArgs []string) (*Server, error) {
	args := append([]string{"--bind-addr", addr}, hardenedFlags...)
	args = append(args, extraArgs...)

	cmd := exec.Command(binary, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.ServerStartFailed(err)
	}

	s := &Server{
		Proc:   OSProcess{P: cmd.Process},
		Addr:   addr,
		exited: make(chan error, 1),
	}
	go func() {
		s.exited <- cmd.Wait()
	}()
	return s, nil
}

// NodeIP resolves the node's own network-visible IPv4 address. The hostname's
// resolved address is preferred; when that fails (common on nodes whose
// hostname only resolves via /etc/hosts to loopback) the interface table is
// scanned for the first global unicast address.
func NodeIP() (string, error) {
	if host, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupIP(host); err == nil {
			for _, a := range addrs {
				if ip4 := a.To4(); ip4 != nil && !ip4.IsLoopback() {
					return ip4.String(), nil
				}
			}
		}
	}

	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("resolve node address: %w", err)
	}
	for _, a := range ifaces {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil && ip4.IsGlobalUnicast() {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("resolve node address: no global unicast IPv4 interface found")
}
