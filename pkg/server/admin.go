package server

import (
	"os"
	"strings"
)

// handleAdminLine dispatches a decoded text-protocol line to one of the
// admin commands. It returns the raw reply bytes to send back, or nil if
// nothing should be sent (an unknown command still gets a reply; nil is
// reserved for replies already sent elsewhere, which currently none are).
func (s *Server) handleAdminLine(c *conn, args [][]byte) []byte {
	if len(args) == 0 {
		return encodeText("ERR unknown_command")
	}
	cmd := strings.ToLower(string(args[0]))
	rest := args[1:]
	switch cmd {
	case "workers":
		return s.adminWorkers()
	case "status":
		return s.adminStatus()
	case "maxqueue":
		return s.adminMaxQueue(rest)
	case "shutdown":
		return s.adminShutdown(rest)
	case "version":
		return encodeText("OK " + adminVersion)
	case "getpid":
		return encodeText("OK " + uitoa(uint64(os.Getpid())))
	case "verbose":
		return encodeText("OK")
	default:
		return encodeText("ERR unknown_command")
	}
}

const adminVersion = "1.1.0-gearhulk"

// adminWorkers mirrors the classic `workers` admin command: one line per
// connection that has registered at least one capability, followed by a
// lone "." terminator line.
func (s *Server) adminWorkers() []byte {
	var b strings.Builder
	seen := make(map[uint64]bool)
	for _, f := range s.functions {
		for _, w := range f.workers {
			if seen[w.id] {
				continue
			}
			seen[w.id] = true
			b.WriteString(uitoa(w.id))
			b.WriteString(" ")
			b.WriteString(w.raw.RemoteAddr().String())
			b.WriteString(" ")
			b.WriteString(w.displayName())
			b.WriteString(" :")
			for _, fn := range w.capabilityOrder {
				b.WriteString(" ")
				b.WriteString(fn)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString(".\n")
	return []byte(b.String())
}

// adminStatus mirrors the classic `status` admin command: one line per
// known function as "name\ttotal\trunning\tavailable_workers", followed
// by a lone "." terminator line.
func (s *Server) adminStatus() []byte {
	var b strings.Builder
	for name, f := range s.functions {
		b.WriteString(name)
		b.WriteString("\t")
		b.WriteString(uitoa(uint64(f.jobCount() + f.running)))
		b.WriteString("\t")
		b.WriteString(uitoa(uint64(f.running)))
		b.WriteString("\t")
		b.WriteString(uitoa(uint64(len(f.workers))))
		b.WriteString("\n")
	}
	b.WriteString(".\n")
	return []byte(b.String())
}

func (s *Server) adminMaxQueue(args [][]byte) []byte {
	if len(args) < 1 {
		return encodeText("ERR invalid_arguments")
	}
	name := string(args[0])
	f := s.getOrCreateFunction(name)
	size := 0
	if len(args) >= 2 {
		size = int(atou(args[1]))
	}
	for p := 0; p < numPriorities; p++ {
		f.maxQueueSize[p] = size
	}
	return encodeText("OK")
}

func (s *Server) adminShutdown(args [][]byte) []byte {
	graceful := len(args) >= 1 && string(args[0]) == "graceful"
	go func() {
		s.Shutdown(graceful)
	}()
	return encodeText("OK")
}
