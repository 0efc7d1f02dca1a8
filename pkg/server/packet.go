package server

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	rt "github.com/drawks/gearhulk/pkg/runtime"
)

// packet is the server-side decoded representation of a Gearman request or
// response. Binary-framed commands carry their fixed argument tuple in
// args, with the final element always the variable-length payload (handle
// data, function names, etc). Text-framed admin commands set isText and
// carry their whitespace-split tokens in args instead.
type packet struct {
	isText bool
	isReq  bool
	typ    rt.PT
	args   [][]byte
}

func (p *packet) arg(i int) []byte {
	if i < 0 || i >= len(p.args) {
		return nil
	}
	return p.args[i]
}

func (p *packet) argString(i int) string {
	return string(p.arg(i))
}

// binArgSplits gives the number of NUL-separated pieces each binary
// command's body decodes into. The last piece runs to the end of the
// body and may contain embedded NULs. Commands not listed here decode as
// a single piece (the whole body).
var binArgSplits = map[rt.PT]int{
	rt.PT_Error:           2, // code, message
	rt.PT_CanDoTimeout:    2, // funcname, timeout(4 BE bytes)
	rt.PT_SubmitJob:       3, // funcname, unique, data
	rt.PT_SubmitJobHigh:   3,
	rt.PT_SubmitJobLow:    3,
	rt.PT_SubmitJobBg:     3,
	rt.PT_SubmitJobHighBg: 3,
	rt.PT_SubmitJobLowBg:  3,
	rt.PT_SubmitJobEpoch:  4, // funcname, unique, epoch, data
	rt.PT_WorkData:        2, // handle, data
	rt.PT_WorkWarning:     2,
	rt.PT_WorkStatus:      3, // handle, numerator, denominator
	rt.PT_WorkComplete:    2,
	rt.PT_WorkException:   2,
	rt.PT_JobAssign:       3, // handle, funcname, data (server->worker)
	rt.PT_JobAssignUniq:   4,
	rt.PT_StatusRes:       5, // handle, known, running, numerator, denominator
}

// readPacket reads exactly one framed packet from r, picking binary or
// text framing by peeking the first byte: binary packets always start
// with a NUL magic byte, text commands never do.
func readPacket(r *bufio.Reader) (*packet, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == 0 {
		return readBinaryPacket(r)
	}
	return readTextPacket(r)
}

func readBinaryPacket(r *bufio.Reader) (*packet, error) {
	header := make([]byte, rt.MinPacketLength)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	var magic [4]byte
	copy(magic[:], header[0:4])
	var isReq bool
	switch magic {
	case rt.MagicRequest:
		isReq = true
	case rt.MagicResponse:
		isReq = false
	default:
		return nil, ErrBadMagic
	}
	cmd := binary.BigEndian.Uint32(header[4:8])
	size := binary.BigEndian.Uint32(header[8:12])
	pt, err := rt.NewPT(cmd)
	if err != nil {
		return nil, ErrInvalidPacket
	}
	body := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, err
		}
	}
	n := binArgSplits[pt]
	var args [][]byte
	if n >= 2 {
		args = bytes.SplitN(body, []byte{0}, n)
	} else {
		args = [][]byte{body}
	}
	return &packet{isReq: isReq, typ: pt, args: args}, nil
}

func readTextPacket(r *bufio.Reader) (*packet, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	line = trimEOL(line)
	fields := splitFields(line)
	args := make([][]byte, len(fields))
	for i, f := range fields {
		args[i] = []byte(f)
	}
	return &packet{isText: true, isReq: true, args: args}, nil
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// encodeBinary builds the wire bytes for a binary response packet. args is
// joined with single NUL separators, matching the decode side.
func encodeBinary(pt rt.PT, args ...[]byte) []byte {
	body := bytes.Join(args, []byte{0})
	out := make([]byte, rt.MinPacketLength+len(body))
	copy(out[0:4], rt.MagicResponse[:])
	binary.BigEndian.PutUint32(out[4:8], uint32(pt))
	binary.BigEndian.PutUint32(out[8:12], uint32(len(body)))
	copy(out[rt.MinPacketLength:], body)
	return out
}

// encodeText builds a CRLF-terminated admin reply line.
func encodeText(line string) []byte {
	return []byte(line + "\r\n")
}

func errorPacket(err error) []byte {
	return encodeBinary(rt.PT_Error, []byte(wireCode(err)), []byte(errMessage(err)))
}

func errMessage(err error) string {
	if we, ok := asWireError(err); ok {
		return we.Message
	}
	return fmt.Sprint(err)
}

func asWireError(err error) (*WireError, bool) {
	we, ok := err.(*WireError)
	return we, ok
}
