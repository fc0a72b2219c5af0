// Package provider defines the capability set every backend adapter
// implements and the shared machinery adapters are built from: strategy
// selection, failure classification, installation probing and the
// subprocess supervisor.
package provider

import (
	"context"
	"errors"

	"github.com/shaneholloman/automaker/internal/domain"
	"github.com/shaneholloman/automaker/internal/history"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Feature names accepted by SupportsFeature.
const (
	FeatureTools     = "tools"
	FeatureVision    = "vision"
	FeatureStreaming = "streaming"
	FeatureHistory   = "history"
)

// ToolServerConfig describes one auxiliary tool server a backend may be
// given access to. Configuration failures degrade: the run proceeds
// without the server.
type ToolServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ExecuteOptions is the request for one execution call.
//
// AllowedTools distinguishes nil (unset, backend default tooling) from an
// empty non-nil slice (explicitly no tools); the distinction drives
// execution strategy selection.
type ExecuteOptions struct {
	Prompt       string
	PromptBlocks []domain.ContentBlock
	History      []history.Message
	Model        string
	WorkingDir   string
	SystemPrompt string
	AllowedTools []string
	MaxTurns     int
	ToolServers  []ToolServerConfig
}

// InstallationStatus reports whether a backend is usable on this machine.
type InstallationStatus struct {
	Installed     bool   `json:"installed"`
	Path          string `json:"path,omitempty"`
	Version       string `json:"version,omitempty"`
	Method        string `json:"method"`
	HasCredential bool   `json:"has_credential"`
	Authenticated bool   `json:"authenticated"`
}

// ModelDefinition is a static catalog entry. Catalogs are process-wide
// constants, never mutated after initialization.
type ModelDefinition struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	ContextWindow   int    `json:"context_window"`
	MaxOutputTokens int    `json:"max_output_tokens"`
	SupportsVision  bool   `json:"supports_vision"`
	SupportsTools   bool   `json:"supports_tools"`
	Tier            string `json:"tier"`
	IsDefault       bool   `json:"is_default,omitempty"`
}

// Provider is one backend adapter.
//
// ExecuteQuery never fails directly: every failure path inside an
// execution is converted into a single terminal error message on the
// returned stream, except cancellation, which ends the stream silently.
type Provider interface {
	Name() string
	ExecuteQuery(ctx context.Context, opts ExecuteOptions) *domain.MessageStream
	DetectInstallation(ctx context.Context) InstallationStatus
	AvailableModels() []ModelDefinition
	SupportsFeature(feature string) bool
}

// DefaultModel returns the catalog's default entry, or the first entry
// when none is marked.
func DefaultModel(models []ModelDefinition) (ModelDefinition, bool) {
	for _, m := range models {
		if m.IsDefault {
			return m, true
		}
	}
	if len(models) > 0 {
		return models[0], true
	}
	return ModelDefinition{}, false
}
