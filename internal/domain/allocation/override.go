package allocation

import (
	"strings"

	"markalloc/internal/errs"
)

// OverrideAction is an administrative status change. Overrides never consult quotas.
type OverrideAction string

const (
	OverrideForceApprove OverrideAction = "force-approve"
	OverrideForceDecline OverrideAction = "force-decline"
	OverridePromote      OverrideAction = "promote"
	OverrideDemote       OverrideAction = "demote"
)

func ParseOverrideAction(raw string) (OverrideAction, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch OverrideAction(normalized) {
	case OverrideForceApprove, OverrideForceDecline, OverridePromote, OverrideDemote:
		return OverrideAction(normalized), nil
	default:
		return "", errs.InvalidInput("invalid override action %q, expected force-approve, force-decline, promote or demote", raw)
	}
}

// ApplyOverride returns the status an allocation moves to under action.
func ApplyOverride(action OverrideAction, current Status) (Status, error) {
	switch action {
	case OverrideForceApprove:
		return StatusApproved, nil
	case OverrideForceDecline:
		return StatusWaitlisted, nil
	case OverridePromote:
		if current != StatusWaitlisted {
			return "", errs.InvalidState("Allocation must be WAITLISTED to promote, current status: %s", current)
		}
		return StatusApproved, nil
	case OverrideDemote:
		if current != StatusApproved {
			return "", errs.InvalidState("Allocation must be APPROVED to demote, current status: %s", current)
		}
		return StatusWaitlisted, nil
	default:
		return "", errs.InvalidInput("invalid override action %q", action)
	}
}

func (a OverrideAction) AuditAction() AuditAction {
	switch a {
	case OverrideForceApprove:
		return AuditOverrideForceAccept
	case OverrideForceDecline:
		return AuditOverrideForceReject
	case OverridePromote:
		return AuditOverridePromote
	default:
		return AuditOverrideDemote
	}
}
