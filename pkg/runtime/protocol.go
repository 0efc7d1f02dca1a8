// Package runtime holds the wire-protocol constants and small buffer
// helpers shared by the client, worker and server packages. Nothing in
// here is specific to either side of the protocol.
package runtime

import "fmt"

// PT is a Gearman packet type (the 4-byte big-endian command field of the
// binary packet header). Values match the numeric identifiers of the
// Gearman protocol so this implementation interoperates with existing
// gearman clients/workers.
type PT uint32

const (
	PT_CanDo PT = 1 + iota
	PT_CantDo
	PT_ResetAbilities
	PT_PreSleep
	_ // 5 is unused in the protocol
	PT_Noop
	PT_SubmitJob
	PT_JobCreated
	PT_GrabJob
	PT_NoJob
	PT_JobAssign
	PT_WorkStatus
	PT_WorkComplete
	PT_WorkFail
	PT_GetStatus
	PT_EchoReq
	PT_EchoRes
	PT_SubmitJobBg
	PT_Error
	PT_StatusRes
	PT_SubmitJobHigh
	PT_SetClientId
	PT_CanDoTimeout
	PT_AllYours
	PT_WorkException
	PT_OptionReq
	PT_OptionRes
	PT_WorkData
	PT_WorkWarning
	PT_GrabJobUniq
	PT_JobAssignUniq
	PT_SubmitJobHighBg
	PT_SubmitJobLow
	PT_SubmitJobLowBg
	PT_SubmitJobSched
	PT_SubmitJobEpoch
)

// PT_Text tags an internally-decoded packet that arrived via the
// line-based text/admin framing. It is never put on the wire; it exists
// only so the dispatcher can switch on a single type.
const PT_Text PT = 0

func (pt PT) String() string {
	if s, ok := ptNames[pt]; ok {
		return s
	}
	return fmt.Sprintf("PT(%d)", uint32(pt))
}

var ptNames = map[PT]string{
	PT_Text:            "TEXT",
	PT_CanDo:           "CAN_DO",
	PT_CantDo:          "CANT_DO",
	PT_ResetAbilities:  "RESET_ABILITIES",
	PT_PreSleep:        "PRE_SLEEP",
	PT_Noop:            "NOOP",
	PT_SubmitJob:       "SUBMIT_JOB",
	PT_JobCreated:      "JOB_CREATED",
	PT_GrabJob:         "GRAB_JOB",
	PT_NoJob:           "NO_JOB",
	PT_JobAssign:       "JOB_ASSIGN",
	PT_WorkStatus:      "WORK_STATUS",
	PT_WorkComplete:    "WORK_COMPLETE",
	PT_WorkFail:        "WORK_FAIL",
	PT_GetStatus:       "GET_STATUS",
	PT_EchoReq:         "ECHO_REQ",
	PT_EchoRes:         "ECHO_RES",
	PT_SubmitJobBg:     "SUBMIT_JOB_BG",
	PT_Error:           "ERROR",
	PT_StatusRes:       "STATUS_RES",
	PT_SubmitJobHigh:   "SUBMIT_JOB_HIGH",
	PT_SetClientId:     "SET_CLIENT_ID",
	PT_CanDoTimeout:    "CAN_DO_TIMEOUT",
	PT_AllYours:        "ALL_YOURS",
	PT_WorkException:   "WORK_EXCEPTION",
	PT_OptionReq:       "OPTION_REQ",
	PT_OptionRes:       "OPTION_RES",
	PT_WorkData:        "WORK_DATA",
	PT_WorkWarning:     "WORK_WARNING",
	PT_GrabJobUniq:     "GRAB_JOB_UNIQ",
	PT_JobAssignUniq:   "JOB_ASSIGN_UNIQ",
	PT_SubmitJobHighBg: "SUBMIT_JOB_HIGH_BG",
	PT_SubmitJobLow:    "SUBMIT_JOB_LOW",
	PT_SubmitJobLowBg:  "SUBMIT_JOB_LOW_BG",
	PT_SubmitJobSched:  "SUBMIT_JOB_SCHED",
	PT_SubmitJobEpoch:  "SUBMIT_JOB_EPOCH",
}

// NewPT validates a command number read off the wire.
func NewPT(n uint32) (PT, error) {
	pt := PT(n)
	if _, ok := ptNames[pt]; !ok || pt == PT_Text {
		return 0, fmt.Errorf("invalid packet type: %d", n)
	}
	return pt, nil
}

// Magic bytes of the binary packet header.
var (
	MagicRequest  = [4]byte{'\x00', 'R', 'E', 'Q'}
	MagicResponse = [4]byte{'\x00', 'R', 'E', 'S'}
)

// MinPacketLength is the size of the fixed binary header: 4-byte magic,
// 4-byte command, 4-byte data length.
const MinPacketLength = 12

// QueueSize is the default buffering depth for internal packet channels.
const QueueSize = 8

// Network is the default network passed to net.Dial/net.Listen by the
// client, worker and server packages.
const Network = "tcp"

// Job priorities. Values double as indices into a function's per-priority
// FIFO array in pkg/server.
const (
	JobHigh   byte = 0
	JobNormal byte = 1
	JobLow    byte = 2
)

// NewBuffer allocates a zeroed byte slice of size n.
func NewBuffer(n int) []byte {
	return make([]byte, n)
}
