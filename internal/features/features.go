package features

import (
	"sync"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string
	Enabled     bool
	Description string
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

// NewManager creates a new feature flag manager.
func NewManager() *Manager {
	return &Manager{
		flags: make(map[string]*FeatureFlag),
	}
}

// Defaults holds the initial state of the predefined flags.
type Defaults struct {
	Cache               bool
	EventHooks          bool
	AuditLog            bool
	ConsistencyWarnings bool
}

// NewManagerWithDefaults registers every predefined flag.
func NewManagerWithDefaults(d Defaults) *Manager {
	m := NewManager()
	m.Register(FeatureCacheEnabled, d.Cache, "memoize validation outcomes by document digest")
	m.Register(FeatureEventHooksEnabled, d.EventHooks, "publish receipt.accepted / receipt.rejected events")
	m.Register(FeatureAuditLog, d.AuditLog, "record validation outcomes in the audit database")
	m.Register(FeatureConsistencyWarnings, d.ConsistencyWarnings, "include arithmetic consistency hints in responses")
	return m
}

// Register registers a new feature flag.
func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled checks if a feature flag is enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false // Default to disabled if flag doesn't exist
	}

	return flag.Enabled
}

// Enable enables a feature flag.
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = true
	}
}

// Disable disables a feature flag.
func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = false
	}
}

// GetAll returns a copy of all feature flags.
func (m *Manager) GetAll() map[string]FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]FeatureFlag, len(m.flags))
	for k, v := range m.flags {
		result[k] = *v
	}
	return result
}

// Predefined feature flag names
const (
	// FeatureCacheEnabled enables/disables the outcome cache
	FeatureCacheEnabled = "cache_enabled"
	// FeatureEventHooksEnabled enables/disables event publishing
	FeatureEventHooksEnabled = "event_hooks_enabled"
	// FeatureAuditLog enables/disables writing the validation audit log
	FeatureAuditLog = "audit_log"
	// FeatureConsistencyWarnings surfaces non-fatal consistency hints
	FeatureConsistencyWarnings = "consistency_warnings"
)
