package allocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"markalloc/internal/bootstrap/logging"
	domain "markalloc/internal/domain/allocation"
	"markalloc/internal/errs"
	"markalloc/internal/ports"
)

type runAuditDetails struct {
	RunID               string `json:"run_id"`
	PoolSize            int    `json:"pool_size"`
	ExperiencedCapacity int    `json:"experienced_capacity"`
	NewCapacity         int    `json:"new_capacity"`
	Approved            int    `json:"approved"`
	Waitlisted          int    `json:"waitlisted"`
	Rejected            int    `json:"rejected"`
}

// RunAllocation scores the eligible pool, places examiners against the experience split
// and quotas, and persists every decision with one audit row. The cycle must be OPEN and
// moves to ALLOCATED. Nothing is written when any step fails.
func (s *Service) RunAllocation(ctx context.Context, input RunAllocationInput) (AllocationResult, error) {
	if err := s.checkReady(ctx); err != nil {
		return AllocationResult{}, err
	}
	if s.oracle == nil {
		return AllocationResult{}, errors.New("scoring oracle is required")
	}

	ctx = logging.WithScope(logging.WithAttrs(ctx, slog.String("component", "usecase.allocation")), input.CycleID, input.SubjectID)
	ctx, span := s.tracer.Start(ctx, "allocation.run", trace.WithAttributes(
		attribute.Int64("cycle_id", int64(input.CycleID)),
		attribute.Int64("subject_id", int64(input.SubjectID)),
	))
	defer span.End()
	ctx = tagSpan(ctx, span)

	result, err := s.runAllocation(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Warn(ctx, "allocation run failed", slog.Any("err", errs.Loggable(err)))
		return AllocationResult{}, err
	}
	return result, nil
}

func (s *Service) runAllocation(ctx context.Context, input RunAllocationInput) (AllocationResult, error) {
	unlock := s.locks.lock(input.CycleID)
	defer unlock()

	result := AllocationResult{CycleID: input.CycleID, SubjectID: input.SubjectID}

	cycle, err := s.loadCycle(ctx, input.CycleID)
	if err != nil {
		return result, err
	}
	if err := domain.RequireCycleStatus(cycle.Status, domain.CycleOpen); err != nil {
		return result, err
	}
	if _, err := s.loadSubject(ctx, input.SubjectID); err != nil {
		return result, err
	}
	capacity, err := domain.SplitCapacity(cycle.TotalRequired, cycle.ExperienceRatio)
	if err != nil {
		return result, err
	}

	pool, err := s.eligiblePool(ctx, input.SubjectID)
	if err != nil {
		return result, err
	}
	if len(pool) == 0 {
		result.Message = fmt.Sprintf("No eligible examiners for subject %d in cycle %d", input.SubjectID, input.CycleID)
		logging.Info(ctx, "allocation run skipped, empty pool")
		return result, nil
	}

	ranked, err := s.scorePool(ctx, pool, input.SubjectID, cycle.Year)
	if err != nil {
		return result, err
	}
	domain.SortByScore(ranked)

	experienced, err := s.experiencedSet(ctx, input.SubjectID, domain.CandidateIDs(ranked))
	if err != nil {
		return result, err
	}
	expCandidates, newCandidates := domain.Partition(ranked, experienced)

	runID := uuid.NewString()
	now := s.now()
	var decisions []domain.Decision

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.loadCycle(txCtx, input.CycleID)
		if err != nil {
			return err
		}
		if err := domain.RequireCycleStatus(current.Status, domain.CycleOpen); err != nil {
			return err
		}

		// Nothing is written until placement finishes, so one snapshot serves the whole walk.
		quotas, err := s.loadQuotaSnapshot(txCtx, input.CycleID, input.SubjectID)
		if err != nil {
			return err
		}
		check := func(approved []domain.Candidate, candidate domain.Candidate) (bool, error) {
			proposed := make([]domain.Member, 0, len(approved)+1)
			for _, c := range approved {
				proposed = append(proposed, c.Member)
			}
			proposed = append(proposed, candidate.Member)
			return len(quotas.evaluate(proposed)) == 0, nil
		}

		decisions, err = domain.Place(expCandidates, newCandidates, capacity, check)
		if err != nil {
			return errs.Wrap(err, "place candidates")
		}

		rows := make([]ports.AllocationCreate, 0, len(decisions))
		for _, d := range decisions {
			rows = append(rows, ports.AllocationCreate{
				ExaminerID:        d.ExaminerID,
				CycleID:           input.CycleID,
				SubjectID:         input.SubjectID,
				Score:             d.Score,
				Rank:              d.Rank,
				Status:            d.Status,
				AllocatedByUserID: input.ActingUserID,
				CreatedAt:         now,
			})
		}
		if _, err := s.repo.CreateAllocations(txCtx, rows); err != nil {
			return err
		}

		if err := s.repo.SetCycleStatus(txCtx, input.CycleID, domain.CycleAllocated, now); err != nil {
			return err
		}

		return s.repo.AppendAudit(txCtx, ports.AuditEntryCreate{
			ActionType:        domain.AuditAllocationRun,
			PerformedByUserID: input.ActingUserID,
			CycleID:           input.CycleID,
			SubjectID:         uint64Ptr(input.SubjectID),
			Details: runAuditDetails{
				RunID:               runID,
				PoolSize:            len(pool),
				ExperiencedCapacity: capacity.Experienced,
				NewCapacity:         capacity.New,
				Approved:            countStatus(decisions, domain.StatusApproved),
				Waitlisted:          countStatus(decisions, domain.StatusWaitlisted),
			},
			CreatedAt: now,
		})
	}); err != nil {
		return result, err
	}

	result.RunID = runID
	result.Approved = countStatus(decisions, domain.StatusApproved)
	result.Waitlisted = countStatus(decisions, domain.StatusWaitlisted)
	result.Message = fmt.Sprintf("Allocated %d examiners, waitlisted %d", result.Approved, result.Waitlisted)

	if summary, err := json.Marshal(result); err == nil {
		s.setCacheBestEffort(ctx, cacheRunSummaryKey(input.CycleID, input.SubjectID), string(summary))
	}
	s.setCacheBestEffort(ctx, cacheCycleStatusKey(input.CycleID), string(domain.CycleAllocated))

	logging.Info(ctx, "allocation run completed",
		slog.String("run_id", runID),
		slog.Int("approved", result.Approved),
		slog.Int("waitlisted", result.Waitlisted),
		slog.Int("pool_size", len(pool)),
	)
	return result, nil
}

// scorePool asks the oracle for every pool member with bounded concurrency. Results are
// index-aligned with pool, so the input order survives for stable tie-breaking.
func (s *Service) scorePool(ctx context.Context, pool []ports.Examiner, subjectID uint64, year int) ([]domain.Candidate, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.score_pool", trace.WithAttributes(attribute.Int("pool_size", len(pool))))
	defer span.End()

	scored := make([]domain.Candidate, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.ScoringWorkers)
	for i, examiner := range pool {
		g.Go(func() error {
			score, err := s.oracle.Score(gctx, examiner.ID, subjectID, year)
			if err != nil {
				return errs.Wrapf(err, "score examiner %d", examiner.ID)
			}
			if math.IsNaN(score) {
				logging.Warn(gctx, "oracle returned NaN, scoring as 0", slog.Uint64("examiner_id", examiner.ID))
				score = 0
			}
			scored[i] = domain.Candidate{Member: examiner.Member(), Score: score}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return scored, nil
}
