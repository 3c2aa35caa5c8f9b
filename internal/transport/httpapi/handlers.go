package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"markalloc/internal/usecase/allocation"
)

type promoteRequest struct {
	SlotCount int `json:"slot_count" validate:"required,gt=0"`
}

type overrideRequest struct {
	Action string `json:"action" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

type notifyRequest struct {
	ResponseDeadline *time.Time `json:"response_deadline"`
}

type quotaRequest struct {
	QuotaType  string   `json:"quota_type" validate:"required"`
	QuotaKey   string   `json:"quota_key" validate:"required"`
	MinCount   *int     `json:"min_count"`
	MaxCount   *int     `json:"max_count"`
	Percentage *float64 `json:"percentage"`
}

func (h *Handler) runAllocation(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	result, err := h.svc.RunAllocation(c.UserContext(), allocation.RunAllocationInput{
		CycleID:      cycleID,
		SubjectID:    subjectID,
		ActingUserID: userID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) listAllocations(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}

	items, err := h.svc.ListAllocations(c.UserContext(), allocation.ListAllocationsInput{
		CycleID:   cycleID,
		SubjectID: subjectID,
		Status:    c.Query("status"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handler) lastRunSummary(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}

	summary, found, err := h.svc.LastRunSummary(c.UserContext(), cycleID, subjectID)
	if err != nil {
		return err
	}
	if !found {
		return fiber.NewError(fiber.StatusNotFound, "no allocation run recorded")
	}
	return c.JSON(summary)
}

func (h *Handler) promoteWaitlist(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	var req promoteRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	result, err := h.svc.PromoteWaitlist(c.UserContext(), allocation.PromoteWaitlistInput{
		CycleID:      cycleID,
		SubjectID:    subjectID,
		SlotCount:    req.SlotCount,
		ActingUserID: userID,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) quotaCompliance(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}

	report, err := h.svc.QuotaCompliance(c.UserContext(), cycleID, subjectID)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

type poolMember struct {
	ExaminerID uint64 `json:"examiner_id"`
	FullName   string `json:"full_name"`
	Region     string `json:"region"`
	Gender     string `json:"gender"`
}

func (h *Handler) eligiblePool(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}

	pool, err := h.svc.EligiblePool(c.UserContext(), cycleID, subjectID)
	if err != nil {
		return err
	}
	out := make([]poolMember, 0, len(pool))
	for _, e := range pool {
		out = append(out, poolMember{ExaminerID: e.ID, FullName: e.FullName, Region: e.Region, Gender: e.Gender})
	}
	return c.JSON(fiber.Map{"data": out})
}

func (h *Handler) listQuotas(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}

	items, err := h.svc.ListQuotas(c.UserContext(), cycleID, subjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handler) setQuota(c *fiber.Ctx) error {
	cycleID, subjectID, err := scopeParams(c)
	if err != nil {
		return err
	}
	if _, err := actingUser(c); err != nil {
		return err
	}

	var req quotaRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	item, err := h.svc.SetQuota(c.UserContext(), allocation.SetQuotaInput{
		CycleID:    cycleID,
		SubjectID:  subjectID,
		QuotaType:  req.QuotaType,
		QuotaKey:   req.QuotaKey,
		MinCount:   req.MinCount,
		MaxCount:   req.MaxCount,
		Percentage: req.Percentage,
	})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (h *Handler) override(c *fiber.Ctx) error {
	allocationID, err := idParam(c, "allocationID")
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	var req overrideRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	item, err := h.svc.Override(c.UserContext(), allocation.OverrideInput{
		AllocationID: allocationID,
		Action:       req.Action,
		ActingUserID: userID,
		Reason:       req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

func (h *Handler) getCycle(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}

	cycle, err := h.svc.GetCycle(c.UserContext(), cycleID)
	if err != nil {
		return err
	}
	return c.JSON(cycle)
}

func (h *Handler) closeCycle(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	cycle, err := h.svc.CloseCycle(c.UserContext(), allocation.CloseCycleInput{CycleID: cycleID, ActingUserID: userID})
	if err != nil {
		return err
	}
	return c.JSON(cycle)
}

func (h *Handler) archive(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	result, err := h.svc.Archive(c.UserContext(), allocation.ArchiveInput{CycleID: cycleID, ActingUserID: userID})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) notifyApproved(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}
	userID, err := actingUser(c)
	if err != nil {
		return err
	}

	var req notifyRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return err
		}
	}

	result, err := h.svc.NotifyApproved(c.UserContext(), allocation.NotifyInput{
		CycleID:          cycleID,
		ActingUserID:     userID,
		ResponseDeadline: req.ResponseDeadline,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *Handler) listAcceptances(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}

	items, err := h.svc.ListAcceptances(c.UserContext(), cycleID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handler) listAudit(c *fiber.Ctx) error {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return err
	}
	subjectID, err := optionalIDQuery(c, "subject_id")
	if err != nil {
		return err
	}
	allocationID, err := optionalIDQuery(c, "allocation_id")
	if err != nil {
		return err
	}

	items, err := h.svc.ListAudit(c.UserContext(), allocation.AuditQuery{
		CycleID:      cycleID,
		SubjectID:    subjectID,
		AllocationID: allocationID,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "field "+verrs[0].Field()+" failed "+verrs[0].Tag())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func scopeParams(c *fiber.Ctx) (uint64, uint64, error) {
	cycleID, err := idParam(c, "cycleID")
	if err != nil {
		return 0, 0, err
	}
	subjectID, err := idParam(c, "subjectID")
	if err != nil {
		return 0, 0, err
	}
	return cycleID, subjectID, nil
}

func idParam(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func optionalIDQuery(c *fiber.Ctx, name string) (uint64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// actingUser reads the caller id set by the upstream gateway. The value is trusted as-is.
func actingUser(c *fiber.Ctx) (uint64, error) {
	raw := strings.TrimSpace(c.Get(headerUserID))
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, headerUserID+" header is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+headerUserID+" header")
	}
	return id, nil
}
