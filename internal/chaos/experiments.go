// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/lifecycle"
	"libradesk/internal/membership"
	"libradesk/internal/records"
)

// Articles whose availability disagrees with their active issue and return transactions.
const articleInconsistenciesQuery = `
SELECT COUNT(*) FROM articles a
WHERE (SELECT COUNT(*) FROM transactions t WHERE t.article_id = a.id AND t.docstatus = 'active' AND t.type = 'issue')
    - (SELECT COUNT(*) FROM transactions t WHERE t.article_id = a.id AND t.docstatus = 'active' AND t.type = 'return')
   <> CASE WHEN a.status = 'issued' THEN 1 ELSE 0 END`

// Pairs of active memberships of one member whose periods intersect.
const overlappingMembershipsQuery = `
SELECT COUNT(*) FROM memberships a
JOIN memberships b ON a.member_id = b.member_id AND a.id < b.id
WHERE a.docstatus = 'active' AND b.docstatus = 'active'
  AND a.from_date < b.to_date AND b.from_date < a.to_date`

// Options tunes the predefined experiments.
type Options struct {
	Concurrency int
	Duration    time.Duration
	Interval    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 50
	}
	if o.Duration <= 0 {
		o.Duration = 10 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	return o
}

// RegisterExperiments registers the predefined consistency experiments.
func (e *Engine) RegisterExperiments(db *records.DB, lc lifecycle.Config, opts Options) {
	e.RegisterExperiment(ConcurrentIssueRace(db, lc, opts))
	e.RegisterExperiment(MembershipOverlapRace(db, lc, opts))
}

// ConcurrentIssueRace submits many issue transactions for one article at once.
// Exactly one may win; the rest must be rejected as already issued.
func ConcurrentIssueRace(db *records.DB, lc lifecycle.Config, opts Options) Experiment {
	opts = opts.withDefaults()
	var succeeded atomic.Int64

	members := membership.NewService(db, lc, nil)
	articles := catalog.NewService(lc.Events, db)
	transactions := circulation.NewService(db, lc, nil)

	return Experiment{
		Name:       "concurrent-issue-race",
		Hypothesis: "System prevents double issue when many issue transactions for one article are submitted at once",
		SteadyState: []Metric{
			SQLMetric("article_state_inconsistencies", db, articleInconsistenciesQuery, Threshold{Operator: "==", Value: 0}),
			{
				Name:      "issue_race_winners",
				Query:     func(context.Context) (float64, error) { return float64(succeeded.Load()), nil },
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "circulation-service",
				Execute: func(ctx context.Context) error {
					memberID, err := seedMember(ctx, members, "Chaos Issue Race")
					if err != nil {
						return err
					}
					article, err := articles.AddArticle(ctx, "Chaos Race Copy", "", "", "")
					if err != nil {
						return err
					}

					ids := make([]string, opts.Concurrency)
					for i := range ids {
						txn, err := transactions.CreateTransaction(ctx, memberID, article.ID, circulation.Issue, lifecycle.Today())
						if err != nil {
							return err
						}
						ids[i] = txn.ID
					}

					n, err := race(ctx, ids, func(ctx context.Context, id string) error {
						_, err := transactions.SubmitTransaction(ctx, id)
						return err
					})
					succeeded.Store(n)
					return err
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "article_state_inconsistencies",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No article should disagree with its transactions",
			},
			{
				Metric:    "issue_race_winners",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Exactly one concurrent issue should succeed",
			},
		},
		Duration:       opts.Duration,
		SampleInterval: opts.Interval,
	}
}

// MembershipOverlapRace submits many identical memberships of one member at once.
// Exactly one may become active.
func MembershipOverlapRace(db *records.DB, lc lifecycle.Config, opts Options) Experiment {
	opts = opts.withDefaults()
	var succeeded atomic.Int64

	members := membership.NewService(db, lc, nil)

	return Experiment{
		Name:       "membership-overlap-race",
		Hypothesis: "System never activates overlapping memberships when they are submitted concurrently",
		SteadyState: []Metric{
			SQLMetric("overlapping_memberships", db, overlappingMembershipsQuery, Threshold{Operator: "==", Value: 0}),
			{
				Name:      "membership_race_winners",
				Query:     func(context.Context) (float64, error) { return float64(succeeded.Load()), nil },
				Threshold: Threshold{Operator: "<=", Value: 1},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "membership-service",
				Execute: func(ctx context.Context) error {
					member, err := members.RegisterMember(ctx, "Chaos Overlap Race", "", "")
					if err != nil {
						return err
					}

					from := lifecycle.Today()
					ids := make([]string, opts.Concurrency)
					for i := range ids {
						m, err := members.CreateMembership(ctx, member.ID, from)
						if err != nil {
							return err
						}
						ids[i] = m.ID
					}

					n, err := race(ctx, ids, func(ctx context.Context, id string) error {
						_, err := members.SubmitMembership(ctx, id)
						return err
					})
					succeeded.Store(n)
					return err
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "overlapping_memberships",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "No member should hold overlapping active memberships",
			},
			{
				Metric:    "membership_race_winners",
				Condition: func(v float64) bool { return v == 1 },
				Message:   "Exactly one concurrent membership should be activated",
			},
		},
		Duration:       opts.Duration,
		SampleInterval: opts.Interval,
	}
}

// seedMember registers a member whose membership covers today.
func seedMember(ctx context.Context, svc membership.Service, name string) (string, error) {
	member, err := svc.RegisterMember(ctx, name, "", "")
	if err != nil {
		return "", err
	}
	m, err := svc.CreateMembership(ctx, member.ID, lifecycle.Today().AddDays(-1))
	if err != nil {
		return "", err
	}
	if _, err := svc.SubmitMembership(ctx, m.ID); err != nil {
		return "", fmt.Errorf("failed to activate seed membership: %w", err)
	}
	return member.ID, nil
}

// race runs submit for every id concurrently and returns how many succeeded.
// Rejections are expected; any other failure is returned.
func race(ctx context.Context, ids []string, submit func(context.Context, string) error) (int64, error) {
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		mu        sync.Mutex
		errs      []error
	)

	start := make(chan struct{})
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			<-start
			err := submit(ctx, id)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, lifecycle.ErrRejected):
			default:
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	close(start)
	wg.Wait()

	return succeeded.Load(), errors.Join(errs...)
}
