package server

import (
	"strings"
	"testing"

	rt "github.com/drawks/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
)

func TestAdminStatusListsFunctions(t *testing.T) {
	s := NewServer(Config{})
	f := s.getOrCreateFunction("reverse")
	f.push(&job{handle: "h1", fn: "reverse"})
	f.running = 2

	reply := string(s.adminStatus())
	assert.True(t, strings.HasPrefix(reply, "reverse\t"))
	assert.True(t, strings.HasSuffix(reply, ".\n"))
}

func TestAdminWorkersListsCapabilities(t *testing.T) {
	s := NewServer(Config{})
	w := newTestConn(t, 7)
	w.addCapability("reverse", 0)
	w.addCapability("uppercase", 0)
	s.getOrCreateFunction("reverse").addWorker(w)
	s.getOrCreateFunction("uppercase").addWorker(w)

	reply := string(s.adminWorkers())
	assert.Contains(t, reply, "reverse")
	assert.Contains(t, reply, "uppercase")
	assert.True(t, strings.HasSuffix(reply, ".\n"))
}

func TestAdminMaxQueueSetsAllPriorities(t *testing.T) {
	s := NewServer(Config{})
	reply := s.adminMaxQueue([][]byte{[]byte("reverse"), []byte("5")})
	assert.Equal(t, "OK\r\n", string(reply))

	f := s.functions["reverse"]
	for p := 0; p < numPriorities; p++ {
		assert.Equal(t, 5, f.maxQueueSize[p])
	}
}

// TestAdminMaxQueueGovernsAdmission proves maxqueue isn't just a field
// setter: handleSubmitJob must consult the same f.maxQueueSize it writes.
func TestAdminMaxQueueGovernsAdmission(t *testing.T) {
	s := NewServer(Config{MaxQueueSize: 100})
	c := newTestConn(t, 1)

	s.adminMaxQueue([][]byte{[]byte("reverse"), []byte("1")})

	s.handleEvent(c, &packet{typ: rt.PT_SubmitJob, args: [][]byte{[]byte("reverse"), []byte(""), []byte("1")}})
	recvPacket(t, c) // JOB_CREATED

	s.handleEvent(c, &packet{typ: rt.PT_SubmitJob, args: [][]byte{[]byte("reverse"), []byte(""), []byte("2")}})
	p := recvPacket(t, c)
	assert.Equal(t, rt.PT_Error, p.typ, "per-function cap set via maxqueue must be enforced, not just stored")
	assert.Equal(t, "queue_full", p.argString(0))
}

func TestHandleAdminLineUnknownCommand(t *testing.T) {
	s := NewServer(Config{})
	reply := s.handleAdminLine(nil, [][]byte{[]byte("frobnicate")})
	assert.Equal(t, "ERR unknown_command\r\n", string(reply))
}

func TestOptionReqExceptionsEnablesWorkException(t *testing.T) {
	s := NewServer(Config{})
	c := newTestConn(t, 1)
	s.handleOptionReq(c, "exceptions")
	assert.True(t, c.exceptions)
	assert.Equal(t, rt.PT_OptionRes, recvPacket(t, c).typ)
}
