// Package contradiction finds conflicting findings within a tenant's graph.
//
// The sweep runs asynchronously after ingestion, never inline with the write
// path, because candidate generation is O(n²) per domain group. Pairs are
// pre-filtered deterministically before any model call: only findings in the
// same domain with equal reporting periods, from different source chunks,
// with non-identical text are compared. Surviving pairs go to the comparison
// model in small batches, concurrently under a semaphore.
package contradiction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealgraph/dealgraph/pkg/checkpoint"
	"github.com/dealgraph/dealgraph/pkg/concurrency"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// Config tunes the sweep.
type Config struct {
	// GroupCap bounds findings per domain group to cap pairwise cost.
	GroupCap int `json:"group_cap" mapstructure:"group_cap"`
	// BatchSize is the number of pairs per comparison model call.
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`
	// MaxConcurrency bounds concurrent comparison calls.
	MaxConcurrency int `json:"max_concurrency" mapstructure:"max_concurrency"`
	// ConfidenceThreshold is the minimum model confidence to persist.
	ConfidenceThreshold float64 `json:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// DefaultConfig returns the standard sweep tuning.
func DefaultConfig() Config {
	return Config{
		GroupCap:            100,
		BatchSize:           5,
		MaxConcurrency:      5,
		ConfidenceThreshold: 0.70,
	}
}

// Detector runs contradiction sweeps over a tenant's findings.
type Detector struct {
	driver      driver.GraphDriver
	comparer    nlp.Comparer
	checkpoints *checkpoint.Manager
	config      Config
	logger      *slog.Logger
}

// NewDetector creates a detector. A nil checkpoint manager disables resume.
func NewDetector(d driver.GraphDriver, comparer nlp.Comparer, checkpoints *checkpoint.Manager, config Config, logger *slog.Logger) *Detector {
	if config.GroupCap <= 0 {
		config.GroupCap = 100
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 5
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = 0.70
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		driver:      d,
		comparer:    comparer,
		checkpoints: checkpoints,
		config:      config,
		logger:      logger,
	}
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	TenantID            string `json:"tenant_id"`
	DomainsSwept        int    `json:"domains_swept"`
	PairsCompared       int    `json:"pairs_compared"`
	ContradictionsFound int    `json:"contradictions_found"`
	Resumed             bool   `json:"resumed"`
}

// candidatePair is a pair of findings that survived the deterministic
// pre-filters.
type candidatePair struct {
	a, b *types.Node
}

// Sweep compares the tenant's current findings domain group by domain group
// and persists contradictions at or above the confidence threshold. An
// aborted sweep resumes from the first unfinished domain group.
func (d *Detector) Sweep(ctx context.Context, tenantID string) (*SweepResult, error) {
	if tenantID == "" {
		return nil, &types.ValidationError{Message: "tenant ID is required"}
	}

	result := &SweepResult{TenantID: tenantID}

	cp, err := d.loadCheckpoint(tenantID)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = &checkpoint.SweepCheckpoint{TenantID: tenantID, StartedAt: time.Now().UTC()}
	} else {
		result.Resumed = true
		d.logger.Info("resuming contradiction sweep",
			"tenant_id", tenantID, "completed_domains", cp.CompletedDomains)
	}

	existingKeys, err := d.existingPairKeys(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for _, domain := range types.Domains() {
		if cp.DomainCompleted(domain) {
			continue
		}
		if err := ctx.Err(); err != nil {
			d.saveCheckpoint(cp, err)
			return result, err
		}

		compared, found, err := d.sweepDomain(ctx, tenantID, domain, existingKeys)
		if err != nil {
			d.saveCheckpoint(cp, err)
			return result, fmt.Errorf("sweeping %s domain: %w", domain, err)
		}

		result.DomainsSwept++
		result.PairsCompared += compared
		result.ContradictionsFound += found
		cp.MarkDomainCompleted(domain)
		d.saveCheckpoint(cp, nil)
	}

	d.clearCheckpoint(tenantID)
	d.logger.Info("contradiction sweep complete",
		"tenant_id", tenantID,
		"pairs_compared", result.PairsCompared,
		"contradictions_found", result.ContradictionsFound)
	return result, nil
}

func (d *Detector) sweepDomain(ctx context.Context, tenantID string, domain types.Domain, existingKeys map[string]bool) (compared, found int, err error) {
	findings, err := d.driver.GetFindings(ctx, tenantID, driver.FindingFilter{
		Domain:          domain,
		CurrentOnly:     true,
		ExcludeRejected: true,
	})
	if err != nil {
		return 0, 0, err
	}
	if len(findings) > d.config.GroupCap {
		d.logger.Warn("domain group capped",
			"tenant_id", tenantID, "domain", domain,
			"findings", len(findings), "cap", d.config.GroupCap)
		findings = findings[:d.config.GroupCap]
	}

	pairs := candidatePairs(findings)
	if len(pairs) == 0 {
		return 0, 0, nil
	}

	outcomes, err := d.comparePairs(ctx, pairs)
	if err != nil {
		return 0, 0, err
	}

	for i, outcome := range outcomes {
		if !outcome.Contradicts {
			continue
		}
		pair := pairs[i]
		if outcome.Confidence < d.config.ConfidenceThreshold {
			// A sub-threshold comparison is a normal outcome, not a
			// failure. Logged for tuning, never stored.
			d.logger.Debug("contradiction below threshold",
				"tenant_id", tenantID,
				"finding_a", pair.a.Uuid, "finding_b", pair.b.Uuid,
				"confidence", outcome.Confidence)
			continue
		}

		c := &types.Contradiction{
			Uuid:       uuid.New().String(),
			TenantID:   tenantID,
			FindingA:   pair.a.Uuid,
			FindingB:   pair.b.Uuid,
			Confidence: outcome.Confidence,
			Reason:     outcome.Reason,
			Status:     types.ContradictionUnresolved,
			DetectedAt: time.Now().UTC(),
		}
		if existingKeys[c.PairKey()] {
			continue
		}

		if err := d.persist(ctx, c); err != nil {
			return compared, found, err
		}
		existingKeys[c.PairKey()] = true
		found++
	}
	return len(pairs), found, nil
}

// candidatePairs applies the deterministic pre-filters: equal reporting
// period, different source chunk, non-identical text.
func candidatePairs(findings []*types.Node) []candidatePair {
	var pairs []candidatePair
	for i := 0; i < len(findings); i++ {
		for j := i + 1; j < len(findings); j++ {
			a, b := findings[i], findings[j]
			if a.DateReferenced != b.DateReferenced {
				continue
			}
			if a.ChunkID != "" && a.ChunkID == b.ChunkID {
				continue
			}
			if normalizeText(a.Content) == normalizeText(b.Content) {
				continue
			}
			pairs = append(pairs, candidatePair{a: a, b: b})
		}
	}
	return pairs
}

// comparePairs batches pairs to the comparison model, running batches
// concurrently under the configured limit. Outcomes are index-aligned with
// the input pairs.
func (d *Detector) comparePairs(ctx context.Context, pairs []candidatePair) ([]nlp.ComparisonOutcome, error) {
	type batch struct {
		offset int
		pairs  []nlp.FindingPair
	}

	var batches []batch
	for start := 0; start < len(pairs); start += d.config.BatchSize {
		end := start + d.config.BatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		fp := make([]nlp.FindingPair, 0, end-start)
		for k := start; k < end; k++ {
			fp = append(fp, nlp.FindingPair{
				ID: k - start,
				A:  pairs[k].a.Content,
				B:  pairs[k].b.Content,
			})
		}
		batches = append(batches, batch{offset: start, pairs: fp})
	}

	fns := make([]func() ([]nlp.ComparisonOutcome, error), len(batches))
	for i, b := range batches {
		b := b
		fns[i] = func() ([]nlp.ComparisonOutcome, error) {
			return d.comparer.ComparePairs(ctx, b.pairs)
		}
	}
	results, errs := concurrency.ExecuteWithResults(ctx, d.config.MaxConcurrency, fns...)
	if err := concurrency.FirstError(errs); err != nil {
		return nil, err
	}

	outcomes := make([]nlp.ComparisonOutcome, len(pairs))
	for i, b := range batches {
		for _, o := range results[i] {
			if o.PairID < 0 || o.PairID >= len(b.pairs) {
				continue
			}
			outcomes[b.offset+o.PairID] = o
		}
	}
	return outcomes, nil
}

// persist writes the contradiction record first, then the CONTRADICTS edge
// best-effort. The record store is the source of truth; a failed edge write
// is logged for reconciliation, not fatal.
func (d *Detector) persist(ctx context.Context, c *types.Contradiction) error {
	if err := d.driver.UpsertContradiction(ctx, c); err != nil {
		return fmt.Errorf("persisting contradiction: %w", err)
	}

	edge := types.NewEdge(uuid.New().String(), types.EdgeContradicts, c.FindingA, c.FindingB, c.TenantID)
	edge.Attributes["detected_at"] = c.DetectedAt.Format(time.RFC3339)
	edge.Attributes["confidence"] = c.Confidence
	edge.Attributes["resolved"] = false
	if err := d.driver.UpsertEdge(ctx, edge); err != nil {
		d.logger.Warn("contradiction edge write failed, record kept",
			"tenant_id", c.TenantID, "contradiction_id", c.Uuid, "error", err)
	}
	return nil
}

func (d *Detector) existingPairKeys(ctx context.Context, tenantID string) (map[string]bool, error) {
	existing, err := d.driver.ListContradictions(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(existing))
	for _, c := range existing {
		keys[c.PairKey()] = true
	}
	return keys, nil
}

func (d *Detector) loadCheckpoint(tenantID string) (*checkpoint.SweepCheckpoint, error) {
	if d.checkpoints == nil {
		return nil, nil
	}
	return d.checkpoints.Load(tenantID)
}

func (d *Detector) saveCheckpoint(cp *checkpoint.SweepCheckpoint, cause error) {
	if d.checkpoints == nil {
		return
	}
	if cause != nil {
		cp.LastError = cause.Error()
	}
	if err := d.checkpoints.Save(cp); err != nil {
		d.logger.Warn("saving sweep checkpoint failed", "tenant_id", cp.TenantID, "error", err)
	}
}

func (d *Detector) clearCheckpoint(tenantID string) {
	if d.checkpoints == nil {
		return
	}
	if err := d.checkpoints.Clear(tenantID); err != nil {
		d.logger.Warn("clearing sweep checkpoint failed", "tenant_id", tenantID, "error", err)
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
