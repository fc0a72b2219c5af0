package codex

import "github.com/shaneholloman/automaker/internal/provider"

var models = []provider.ModelDefinition{
	{
		ID:              "gpt-5.2-codex",
		DisplayName:     "GPT-5.2 Codex",
		ContextWindow:   400000,
		MaxOutputTokens: 128000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "standard",
		IsDefault:       true,
	},
	{
		ID:              "gpt-5.2",
		DisplayName:     "GPT-5.2",
		ContextWindow:   400000,
		MaxOutputTokens: 128000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "premium",
	},
	{
		ID:              "gpt-5.1-codex-mini",
		DisplayName:     "GPT-5.1 Codex Mini",
		ContextWindow:   272000,
		MaxOutputTokens: 128000,
		SupportsVision:  false,
		SupportsTools:   true,
		Tier:            "fast",
	},
}
