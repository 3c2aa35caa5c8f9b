package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markalloc/internal/errs"
)

func TestApplyOverride(t *testing.T) {
	cases := []struct {
		action  OverrideAction
		current Status
		want    Status
		kind    errs.Kind
	}{
		{action: OverrideForceApprove, current: StatusApproved, want: StatusApproved},
		{action: OverrideForceApprove, current: StatusWaitlisted, want: StatusApproved},
		{action: OverrideForceDecline, current: StatusApproved, want: StatusWaitlisted},
		{action: OverrideForceDecline, current: StatusWaitlisted, want: StatusWaitlisted},
		{action: OverridePromote, current: StatusWaitlisted, want: StatusApproved},
		{action: OverridePromote, current: StatusApproved, kind: errs.KindInvalidState},
		{action: OverrideDemote, current: StatusApproved, want: StatusWaitlisted},
		{action: OverrideDemote, current: StatusWaitlisted, kind: errs.KindInvalidState},
	}
	for _, tc := range cases {
		got, err := ApplyOverride(tc.action, tc.current)
		if tc.kind != "" {
			assert.True(t, errs.IsKind(err, tc.kind), "%s from %s: err = %v", tc.action, tc.current, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s from %s", tc.action, tc.current)
	}
}

func TestParseOverrideAction(t *testing.T) {
	got, err := ParseOverrideAction(" FORCE_APPROVE ")
	require.NoError(t, err)
	assert.Equal(t, OverrideForceApprove, got)
	assert.Equal(t, AuditOverrideForceAccept, got.AuditAction())

	_, err = ParseOverrideAction("reject")
	assert.True(t, errs.IsKind(err, errs.KindInvalidInput))
}

func TestRequireCycleStatusMessage(t *testing.T) {
	err := RequireCycleStatus(CycleClosed, CycleOpen)
	require.Error(t, err)
	assert.Equal(t, "Marking cycle must be OPEN, current status: CLOSED", err.Error())
	assert.NoError(t, RequireCycleStatus(CycleOpen, CycleOpen))
}
