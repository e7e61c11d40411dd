// Package checkpoint persists contradiction sweep progress so a long sweep
// can be aborted and resumed per domain group instead of restarting from
// scratch over the whole tenant.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dealgraph/dealgraph/pkg/types"
)

// ErrInvalidTenantID is returned when a tenant ID would escape the
// checkpoint directory.
var ErrInvalidTenantID = errors.New("invalid tenant ID: contains path traversal or invalid characters")

// SweepCheckpoint records which domain groups of a tenant sweep finished.
type SweepCheckpoint struct {
	TenantID         string    `json:"tenant_id"`
	StartedAt        time.Time `json:"started_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
	CompletedDomains []string  `json:"completed_domains"`
	LastError        string    `json:"last_error,omitempty"`
}

// DomainCompleted reports whether the given domain group already finished.
func (c *SweepCheckpoint) DomainCompleted(domain types.Domain) bool {
	for _, d := range c.CompletedDomains {
		if d == string(domain) {
			return true
		}
	}
	return false
}

// MarkDomainCompleted records a finished domain group.
func (c *SweepCheckpoint) MarkDomainCompleted(domain types.Domain) {
	if c.DomainCompleted(domain) {
		return
	}
	c.CompletedDomains = append(c.CompletedDomains, string(domain))
	c.LastUpdatedAt = time.Now().UTC()
}

// Manager stores sweep checkpoints as JSON files, one per tenant.
type Manager struct {
	dir string
}

// NewManager creates a checkpoint manager. An empty dir defaults to a
// subdirectory of the system temp directory.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "dealgraph-checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

func validateTenantID(tenantID string) error {
	if tenantID == "" ||
		strings.ContainsAny(tenantID, "/\\") ||
		strings.Contains(tenantID, "..") {
		return ErrInvalidTenantID
	}
	return nil
}

func (m *Manager) path(tenantID string) string {
	return filepath.Join(m.dir, tenantID+".sweep.json")
}

// Load returns the checkpoint for the tenant, or nil when none exists.
func (m *Manager) Load(tenantID string) (*SweepCheckpoint, error) {
	if err := validateTenantID(tenantID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path(tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}
	var cp SweepCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}
	return &cp, nil
}

// Save writes the checkpoint atomically via a rename.
func (m *Manager) Save(cp *SweepCheckpoint) error {
	if err := validateTenantID(cp.TenantID); err != nil {
		return err
	}
	cp.LastUpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	tmp := m.path(cp.TenantID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.path(cp.TenantID)); err != nil {
		return fmt.Errorf("committing checkpoint: %w", err)
	}
	return nil
}

// Clear removes a tenant's checkpoint after a sweep completes.
func (m *Manager) Clear(tenantID string) error {
	if err := validateTenantID(tenantID); err != nil {
		return err
	}
	if err := os.Remove(m.path(tenantID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}
