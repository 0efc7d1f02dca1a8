package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPT(t *testing.T) {
	pt, err := NewPT(uint32(PT_SubmitJob))
	require.NoError(t, err)
	assert.Equal(t, PT_SubmitJob, pt)

	_, err = NewPT(9999)
	assert.Error(t, err)

	_, err = NewPT(uint32(PT_Text))
	assert.Error(t, err, "PT_Text is an internal tag, never a valid wire command")

	_, err = NewPT(5)
	assert.Error(t, err, "5 is reserved and unused on the wire")
}

func TestPTString(t *testing.T) {
	assert.Equal(t, "SUBMIT_JOB", PT_SubmitJob.String())
	assert.Equal(t, "TEXT", PT_Text.String())
	assert.Contains(t, PT(0xFFFF).String(), "PT(")
}

func TestPTNumericIdentifiers(t *testing.T) {
	// These values are load-bearing: any client/worker speaking the real
	// Gearman wire protocol depends on them.
	cases := map[PT]uint32{
		PT_CanDo:          1,
		PT_CantDo:         2,
		PT_ResetAbilities: 3,
		PT_PreSleep:       4,
		PT_Noop:           6,
		PT_SubmitJob:      7,
		PT_JobCreated:     8,
		PT_GrabJob:        9,
		PT_NoJob:          10,
		PT_JobAssign:      11,
		PT_WorkStatus:     12,
		PT_WorkComplete:   13,
		PT_WorkFail:       14,
		PT_GetStatus:      15,
		PT_EchoReq:        16,
		PT_EchoRes:        17,
		PT_SubmitJobBg:    18,
		PT_Error:          19,
		PT_StatusRes:      20,
		PT_SubmitJobHigh:  21,
		PT_SetClientId:    22,
		PT_CanDoTimeout:   23,
		PT_AllYours:       24,
		PT_WorkException:  25,
		PT_OptionReq:      26,
		PT_OptionRes:      27,
		PT_WorkData:       28,
		PT_WorkWarning:    29,
		PT_GrabJobUniq:    30,
		PT_JobAssignUniq:  31,
		PT_SubmitJobHighBg: 32,
		PT_SubmitJobLow:   33,
		PT_SubmitJobLowBg: 34,
		PT_SubmitJobSched: 35,
		PT_SubmitJobEpoch: 36,
	}
	for pt, want := range cases {
		assert.Equal(t, want, uint32(pt), "%s", pt)
	}
}
