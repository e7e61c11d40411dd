// Package truth maintains the temporal validity of findings.
//
// Nothing is ever deleted. A superseded finding keeps its node and history;
// it is marked invalid and linked to its replacement with a SUPERSEDES edge.
// Current-truth queries only consider findings whose invalid_at is unset.
package truth

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/types"
)

// Store applies supersessions and answers current-truth queries.
type Store struct {
	driver driver.GraphDriver
	logger *slog.Logger
}

// NewStore creates a truth store over the given graph driver.
func NewStore(d driver.GraphDriver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{driver: d, logger: logger}
}

// Supersede marks the old finding invalid and links the new finding to it
// with a SUPERSEDES edge. The old finding is preserved for history queries.
// Superseding an already invalid finding is a no-op for the validity window
// but still records the edge if missing.
func (s *Store) Supersede(ctx context.Context, oldID, newID, tenantID, reason string) error {
	if oldID == newID {
		return &types.ValidationError{Message: "a finding cannot supersede itself"}
	}

	oldFinding, err := s.driver.GetNode(ctx, oldID, tenantID)
	if err != nil {
		return err
	}
	newFinding, err := s.driver.GetNode(ctx, newID, tenantID)
	if err != nil {
		return err
	}
	if oldFinding.Type != types.FindingNodeType || newFinding.Type != types.FindingNodeType {
		return &types.ValidationError{Message: "supersession requires two findings"}
	}

	now := time.Now().UTC()
	if oldFinding.InvalidAt == nil {
		oldFinding.InvalidAt = &now
		oldFinding.UpdatedAt = now
		if err := s.driver.UpsertNode(ctx, oldFinding); err != nil {
			return fmt.Errorf("invalidating finding: %w", err)
		}
	}

	if existing, err := s.driver.GetEdgeBetween(ctx, types.EdgeSupersedes, newID, oldID, tenantID); err == nil && existing != nil {
		return nil
	} else if err != nil && !types.IsNotFound(err) {
		return err
	}

	edge := types.NewEdge(uuid.New().String(), types.EdgeSupersedes, newID, oldID, tenantID)
	edge.Attributes["reason"] = reason
	edge.Attributes["superseded_at"] = now.Format(time.RFC3339)
	if err := s.driver.UpsertEdge(ctx, edge); err != nil {
		return fmt.Errorf("writing supersedes edge: %w", err)
	}

	s.logger.Info("finding superseded",
		"tenant_id", tenantID, "old", oldID, "new", newID, "reason", reason)
	return nil
}

// CurrentTruth returns the single current finding for a topic: the latest
// valid_at among findings with no invalid_at, ranked secondarily by source
// channel confidence, then ingestion order, then UUID. Returns a not-found
// error when no current finding matches.
func (s *Store) CurrentTruth(ctx context.Context, tenantID, topic string) (*types.Node, error) {
	findings, err := s.driver.GetFindings(ctx, tenantID, driver.FindingFilter{
		Topic:           topic,
		CurrentOnly:     true,
		ExcludeRejected: true,
	})
	if err != nil {
		return nil, err
	}
	if len(findings) == 0 {
		return nil, &types.NotFoundError{Kind: "current finding", ID: topic}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return truthLess(findings[j], findings[i])
	})
	return findings[0], nil
}

// truthLess orders a below b in truth ranking. The tie-break chain is
// valid_at, then channel confidence, then created_at, then UUID, so equal
// inputs always rank deterministically.
func truthLess(a, b *types.Node) bool {
	if !a.ValidAt.Equal(b.ValidAt) {
		return a.ValidAt.Before(b.ValidAt)
	}
	ca, cb := types.ChannelConfidence(a.SourceChannel), types.ChannelConfidence(b.SourceChannel)
	if ca != cb {
		return ca < cb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Uuid > b.Uuid
}

// ResolveContradiction applies an operator decision: the accepted finding
// supersedes the other, which is marked rejected. The contradiction record
// is closed with the decision note.
func (s *Store) ResolveContradiction(ctx context.Context, contradictionID, acceptedID, tenantID, note string) error {
	c, err := s.driver.GetContradiction(ctx, contradictionID, tenantID)
	if err != nil {
		return err
	}

	var rejectedID string
	switch acceptedID {
	case c.FindingA:
		rejectedID = c.FindingB
	case c.FindingB:
		rejectedID = c.FindingA
	default:
		return &types.ValidationError{
			Message: fmt.Sprintf("finding %s is not part of contradiction %s", acceptedID, contradictionID),
		}
	}

	if err := s.Supersede(ctx, rejectedID, acceptedID, tenantID, "contradiction resolved: "+note); err != nil {
		return err
	}

	now := time.Now().UTC()
	rejected, err := s.driver.GetNode(ctx, rejectedID, tenantID)
	if err != nil {
		return err
	}
	rejected.Status = types.FindingStatusRejected
	rejected.UpdatedAt = now
	if err := s.driver.UpsertNode(ctx, rejected); err != nil {
		return fmt.Errorf("marking finding rejected: %w", err)
	}

	accepted, err := s.driver.GetNode(ctx, acceptedID, tenantID)
	if err != nil {
		return err
	}
	accepted.Status = types.FindingStatusValidated
	accepted.UpdatedAt = now
	if err := s.driver.UpsertNode(ctx, accepted); err != nil {
		return fmt.Errorf("marking finding validated: %w", err)
	}

	c.Status = types.ContradictionResolved
	c.ResolvedAt = &now
	c.ResolvedNote = note
	if err := s.driver.UpsertContradiction(ctx, c); err != nil {
		return fmt.Errorf("closing contradiction: %w", err)
	}

	s.logger.Info("contradiction resolved",
		"tenant_id", tenantID, "contradiction_id", contradictionID,
		"accepted", acceptedID, "rejected", rejectedID)
	return nil
}

// AnnotateContradiction records an operator note on a contradiction without
// superseding either finding. Both findings keep their validity windows; the
// record moves to noted or investigating and stays open for a later
// resolution. Resolved contradictions cannot be reopened this way.
func (s *Store) AnnotateContradiction(ctx context.Context, contradictionID, tenantID string, status types.ContradictionStatus, note string) error {
	if status != types.ContradictionNoted && status != types.ContradictionInvestigating {
		return &types.ValidationError{
			Message: fmt.Sprintf("status %q is not an annotation status", status),
		}
	}

	c, err := s.driver.GetContradiction(ctx, contradictionID, tenantID)
	if err != nil {
		return err
	}
	if c.Status == types.ContradictionResolved {
		return &types.ValidationError{
			Message: fmt.Sprintf("contradiction %s is already resolved", contradictionID),
		}
	}

	c.Status = status
	c.ResolvedNote = note
	if err := s.driver.UpsertContradiction(ctx, c); err != nil {
		return fmt.Errorf("annotating contradiction: %w", err)
	}

	s.logger.Info("contradiction annotated",
		"tenant_id", tenantID, "contradiction_id", contradictionID,
		"status", string(status))
	return nil
}

// FindingHistory returns all findings matching the topic, current and
// superseded alike, newest validity first. Superseded findings stay
// retrievable here even though CurrentTruth never returns them.
func (s *Store) FindingHistory(ctx context.Context, tenantID, topic string) ([]*types.Node, error) {
	findings, err := s.driver.GetFindings(ctx, tenantID, driver.FindingFilter{Topic: topic})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return truthLess(findings[j], findings[i])
	})
	return findings, nil
}
