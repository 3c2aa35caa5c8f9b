package allocation

import (
	"strings"

	"markalloc/internal/errs"
)

type CycleStatus string

const (
	CycleOpen      CycleStatus = "OPEN"
	CycleAllocated CycleStatus = "ALLOCATED"
	CycleClosed    CycleStatus = "CLOSED"
)

type ExaminerStatus string

const (
	ExaminerActive    ExaminerStatus = "ACTIVE"
	ExaminerSuspended ExaminerStatus = "SUSPENDED"
	ExaminerInactive  ExaminerStatus = "INACTIVE"
)

// Status is the allocation status. There is no terminal rejected state:
// an examiner who is not approved waits.
type Status string

const (
	StatusApproved   Status = "APPROVED"
	StatusWaitlisted Status = "WAITLISTED"
)

type QuotaType string

const (
	QuotaRegion QuotaType = "REGION"
	QuotaGender QuotaType = "GENDER"
)

type AuditAction string

const (
	AuditAllocationRun       AuditAction = "ALLOCATION_RUN"
	AuditWaitlistPromotion   AuditAction = "WAITLIST_PROMOTION"
	AuditOverrideForceAccept AuditAction = "OVERRIDE_FORCE_APPROVE"
	AuditOverrideForceReject AuditAction = "OVERRIDE_FORCE_DECLINE"
	AuditOverridePromote     AuditAction = "OVERRIDE_PROMOTE"
	AuditOverrideDemote      AuditAction = "OVERRIDE_DEMOTE"
	AuditCycleClosed         AuditAction = "CYCLE_CLOSED"
	AuditCycleArchived       AuditAction = "CYCLE_ARCHIVED"
)

const AcceptancePending = "PENDING"

func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusApproved:
		return StatusApproved, nil
	case StatusWaitlisted:
		return StatusWaitlisted, nil
	default:
		return "", errs.InvalidInput("invalid allocation status %q, expected APPROVED or WAITLISTED", raw)
	}
}

func ParseQuotaType(raw string) (QuotaType, error) {
	switch QuotaType(strings.ToUpper(strings.TrimSpace(raw))) {
	case QuotaRegion:
		return QuotaRegion, nil
	case QuotaGender:
		return QuotaGender, nil
	default:
		return "", errs.InvalidInput("invalid quota type %q, expected REGION or GENDER", raw)
	}
}

func ParseCycleStatus(raw string) (CycleStatus, error) {
	switch CycleStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case CycleOpen:
		return CycleOpen, nil
	case CycleAllocated:
		return CycleAllocated, nil
	case CycleClosed:
		return CycleClosed, nil
	default:
		return "", errs.InvalidInput("invalid marking cycle status %q", raw)
	}
}

func ParseExaminerStatus(raw string) (ExaminerStatus, error) {
	switch ExaminerStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case ExaminerActive:
		return ExaminerActive, nil
	case ExaminerSuspended:
		return ExaminerSuspended, nil
	case ExaminerInactive:
		return ExaminerInactive, nil
	default:
		return "", errs.InvalidInput("invalid examiner status %q", raw)
	}
}

// RequireCycleStatus returns an invalid state error naming the expected and current status.
func RequireCycleStatus(current CycleStatus, want CycleStatus) error {
	if current == want {
		return nil
	}
	return errs.InvalidState("Marking cycle must be %s, current status: %s", want, current)
}
