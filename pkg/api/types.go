// Package api defines the HTTP wire types for the run API.
package api

import "time"

// CreateRunRequest starts one execution call against a backend.
//
// AllowedTools distinguishes absent/null (backend default tooling) from an
// explicit empty list (no tools); the field therefore has no omitempty.
type CreateRunRequest struct {
	Provider     string        `json:"provider"`
	Model        string        `json:"model,omitempty"`
	Prompt       string        `json:"prompt"`
	WorkingDir   string        `json:"working_dir,omitempty"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	History      []HistoryTurn `json:"history,omitempty"`
	AllowedTools []string      `json:"allowed_tools"`
	MaxTurns     int           `json:"max_turns,omitempty"`
}

// HistoryTurn is one prior conversation turn supplied by the caller.
// Role is "user" or "assistant".
type HistoryTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type RunResponse struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	Prompt     string    `json:"prompt"`
	WorkingDir string    `json:"working_dir,omitempty"`
	State      string    `json:"state"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
}

type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ProviderInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model,omitempty"`
	Tools        bool   `json:"tools"`
	Vision       bool   `json:"vision"`
	Streaming    bool   `json:"streaming"`
	History      bool   `json:"history"`
}

type ProviderListResponse struct {
	Providers []ProviderInfo `json:"providers"`
}

type ModelInfo struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	ContextWindow   int    `json:"context_window"`
	MaxOutputTokens int    `json:"max_output_tokens"`
	SupportsVision  bool   `json:"supports_vision"`
	SupportsTools   bool   `json:"supports_tools"`
	Tier            string `json:"tier"`
	IsDefault       bool   `json:"is_default,omitempty"`
}

type ModelListResponse struct {
	Provider string      `json:"provider"`
	Models   []ModelInfo `json:"models"`
}

type ProviderStatusResponse struct {
	Provider      string `json:"provider"`
	Installed     bool   `json:"installed"`
	Path          string `json:"path,omitempty"`
	Version       string `json:"version,omitempty"`
	Method        string `json:"method"`
	HasCredential bool   `json:"has_credential"`
	Authenticated bool   `json:"authenticated"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
