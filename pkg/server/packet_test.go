package server

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	rt "github.com/drawks/gearhulk/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryPacketRoundTrip(t *testing.T) {
	wire := encodeBinary(rt.PT_JobAssign, []byte("H:host:1"), []byte("reverse"), []byte("payload"))
	r := bufio.NewReader(bytes.NewReader(wire))

	p, err := readPacket(r)
	require.NoError(t, err)
	assert.False(t, p.isText)
	assert.Equal(t, rt.PT_JobAssign, p.typ)
	assert.Equal(t, "H:host:1", p.argString(0))
	assert.Equal(t, "reverse", p.argString(1))
	assert.Equal(t, "payload", p.argString(2))
}

func TestBinaryPacketLastArgKeepsEmbeddedNuls(t *testing.T) {
	data := []byte("a\x00b\x00c")
	wire := encodeBinary(rt.PT_WorkComplete, []byte("H:host:1"), data)
	r := bufio.NewReader(bytes.NewReader(wire))

	p, err := readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, data, p.arg(1))
}

func TestBinaryPacketBadMagic(t *testing.T) {
	wire := encodeBinary(rt.PT_EchoReq, []byte("x"))
	wire[1] = 'X' // corrupt the magic
	r := bufio.NewReader(bytes.NewReader(wire))

	_, err := readPacket(r)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestTextPacketRoundTrip(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("status\r\n"))
	p, err := readPacket(r)
	require.NoError(t, err)
	assert.True(t, p.isText)
	require.Len(t, p.args, 1)
	assert.Equal(t, "status", p.argString(0))
}

func TestTextPacketMultipleFields(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("maxqueue  reverse   10\n"))
	p, err := readPacket(r)
	require.NoError(t, err)
	require.Len(t, p.args, 3)
	assert.Equal(t, []string{"maxqueue", "reverse", "10"}, []string{
		p.argString(0), p.argString(1), p.argString(2),
	})
}

func TestErrorPacketCarriesWireCode(t *testing.T) {
	wire := errorPacket(ErrJobNotFound)
	r := bufio.NewReader(bytes.NewReader(wire))
	p, err := readPacket(r)
	require.NoError(t, err)
	assert.Equal(t, rt.PT_Error, p.typ)
	assert.Equal(t, "job_not_found", p.argString(0))
}
