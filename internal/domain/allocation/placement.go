package allocation

import "sort"

// Candidate is a pool member with its oracle score.
type Candidate struct {
	Member
	Score float64
}

// Decision is the outcome for one candidate. Rank is the decision sequence
// number within the run, starting at 1; it is not the score rank.
type Decision struct {
	Candidate
	Status      Status
	Rank        int
	Experienced bool
}

// QuotaCheck reports whether approving candidate on top of the examiners already
// approved in this run keeps every quota satisfied.
type QuotaCheck func(approved []Candidate, candidate Candidate) (bool, error)

// SortByScore orders candidates by descending score. Equal scores keep their input order.
func SortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}

// Partition splits ranked candidates into experienced and new, preserving order.
func Partition(ranked []Candidate, experienced map[uint64]struct{}) ([]Candidate, []Candidate) {
	exp := make([]Candidate, 0, len(ranked))
	fresh := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		if _, ok := experienced[c.ExaminerID]; ok {
			exp = append(exp, c)
			continue
		}
		fresh = append(fresh, c)
	}
	return exp, fresh
}

// Place walks experienced then new candidates, approving quota-compliant ones until each
// group's capacity is filled. Non-compliant candidates met on the way are waitlisted in
// sequence. Everyone left undecided is waitlisted afterwards, experienced first.
func Place(experienced []Candidate, fresh []Candidate, capacity Capacity, check QuotaCheck) ([]Decision, error) {
	decisions := make([]Decision, 0, len(experienced)+len(fresh))
	approved := make([]Candidate, 0, capacity.Total())

	walk := func(list []Candidate, limit int, isExperienced bool) (int, error) {
		placed := 0
		i := 0
		for ; i < len(list) && placed < limit; i++ {
			candidate := list[i]
			ok, err := check(approved, candidate)
			if err != nil {
				return i, err
			}

			status := StatusWaitlisted
			if ok {
				status = StatusApproved
				approved = append(approved, candidate)
				placed++
			}
			decisions = append(decisions, Decision{
				Candidate:   candidate,
				Status:      status,
				Rank:        len(decisions) + 1,
				Experienced: isExperienced,
			})
		}
		return i, nil
	}

	expDecided, err := walk(experienced, capacity.Experienced, true)
	if err != nil {
		return nil, err
	}
	newDecided, err := walk(fresh, capacity.New, false)
	if err != nil {
		return nil, err
	}

	for _, c := range experienced[expDecided:] {
		decisions = append(decisions, Decision{Candidate: c, Status: StatusWaitlisted, Rank: len(decisions) + 1, Experienced: true})
	}
	for _, c := range fresh[newDecided:] {
		decisions = append(decisions, Decision{Candidate: c, Status: StatusWaitlisted, Rank: len(decisions) + 1})
	}
	return decisions, nil
}

// CandidateIDs returns examiner ids in order.
func CandidateIDs(candidates []Candidate) []uint64 {
	ids := make([]uint64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ExaminerID)
	}
	return ids
}
