package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// processBudget bounds one URL's pipeline run inside a healing pass. The
// in-flight URL runs detached from the loop context so shutdown cannot abort
// it mid-pipeline; this deadline is what stops a hung scrape instead.
const processBudget = 5 * time.Minute

// HealReport summarizes one healing pass.
type HealReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	StaleURLs  int            `json:"stale_urls"`
	Outcomes   map[string]int `json:"outcomes"`
	Failures   []string       `json:"failures,omitempty"`
}

// RunHealingLoop runs healing passes until the context is cancelled: find
// sources whose edges have gone unverified past the threshold, re-process
// each, sleep the configured interval, repeat. An in-flight URL finishes
// before shutdown completes.
func (a *Agent) RunHealingLoop(ctx context.Context) {
	a.running.Store(true)
	a.metrics.SetAgentRunning(true)
	defer func() {
		a.running.Store(false)
		a.metrics.SetAgentRunning(false)
		a.status.Set(StateStopped, "healing loop stopped")
	}()

	interval := time.Duration(a.heal.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	a.logger.Info("healing loop started",
		"days_threshold", a.heal.DaysThreshold,
		"interval", interval,
		"parallelism", a.parallelism(),
	)

	for {
		a.HealOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// HealOnce performs a single healing pass and returns its report. Per-URL
// failures are recorded in the report, never propagated.
func (a *Agent) HealOnce(ctx context.Context) *HealReport {
	report := &HealReport{
		StartedAt: time.Now().UTC(),
		Outcomes:  make(map[string]int),
	}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		a.setLastReport(report)
		a.metrics.RecordHealCycle(report.StaleURLs)
	}()

	a.status.Set(StateHealing, "scanning for stale sources")

	urls, err := a.store.FindStale(ctx, a.heal.DaysThreshold)
	if err != nil {
		a.logger.Error("stale scan failed", "error", err)
		report.Failures = append(report.Failures, "find_stale: "+err.Error())
		a.status.Set(StateIdle, "stale scan failed")
		return report
	}

	report.StaleURLs = len(urls)
	if len(urls) == 0 {
		a.logger.Info("healing pass found no stale sources")
		a.status.Set(StateIdle, "no stale sources")
		return report
	}

	a.logger.Info("healing stale sources", "count", len(urls))

	pace := newPacer(a.minDelay())
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.parallelism())
	for _, url := range urls {
		url := url
		g.Go(func() error {
			if err := pace.wait(ctx); err != nil {
				return nil
			}
			// Cancellation stops URLs that have not started; the one in
			// flight runs to completion on a detached context so shutdown
			// never records a spurious failure.
			if ctx.Err() != nil {
				return nil
			}
			procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), processBudget)
			defer cancel()

			result := a.ProcessURL(procCtx, url)

			mu.Lock()
			report.Outcomes[string(result.Status)]++
			if result.Error != "" {
				report.Failures = append(report.Failures, url+": "+result.Error)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	a.alertIfAllFailed(report)

	a.logger.Info("healing pass complete",
		"stale_urls", report.StaleURLs,
		"outcomes", report.Outcomes,
	)
	a.status.Set(StateIdle, fmt.Sprintf("healing pass complete, %d sources checked", report.StaleURLs))

	return report
}

// alertIfAllFailed notifies the operator when a healing pass could not
// re-verify a single source. Partial failures stay in the report only.
func (a *Agent) alertIfAllFailed(report *HealReport) {
	if report.StaleURLs == 0 || len(report.Failures) < report.StaleURLs {
		return
	}
	subject := fmt.Sprintf("Healing pass failed for all %d stale sources", report.StaleURLs)
	message := "Every source in the last healing pass failed to re-verify:\n\n" +
		strings.Join(report.Failures, "\n")
	if err := a.alerter.Alert(subject, message); err != nil {
		a.logger.Error("healing failure alert not delivered", "error", err)
	}
}

func (a *Agent) setLastReport(report *HealReport) {
	a.reportMu.Lock()
	defer a.reportMu.Unlock()
	a.lastReport = report
}

func (a *Agent) parallelism() int {
	if a.heal.Parallelism > 0 {
		return a.heal.Parallelism
	}
	return 1
}

func (a *Agent) minDelay() time.Duration {
	if a.heal.MinDelaySeconds > 0 {
		return time.Duration(a.heal.MinDelaySeconds) * time.Second
	}
	return time.Second
}

// pacer spaces scrapes out across workers so a healing pass never hammers
// sources faster than one request per delay window.
type pacer struct {
	mu    sync.Mutex
	next  time.Time
	delay time.Duration
}

func newPacer(delay time.Duration) *pacer {
	return &pacer{delay: delay}
}

// wait blocks until this caller's slot arrives or the context is cancelled.
func (p *pacer) wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	var sleep time.Duration
	if p.next.After(now) {
		sleep = p.next.Sub(now)
		p.next = p.next.Add(p.delay)
	} else {
		p.next = now.Add(p.delay)
	}
	p.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
