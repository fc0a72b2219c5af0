package claude

import "github.com/shaneholloman/automaker/internal/provider"

var models = []provider.ModelDefinition{
	{
		ID:              "claude-opus-4-1",
		DisplayName:     "Claude Opus 4.1",
		ContextWindow:   200000,
		MaxOutputTokens: 32000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "premium",
	},
	{
		ID:              "claude-sonnet-4-5",
		DisplayName:     "Claude Sonnet 4.5",
		ContextWindow:   200000,
		MaxOutputTokens: 64000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "standard",
		IsDefault:       true,
	},
	{
		ID:              "claude-haiku-4-5",
		DisplayName:     "Claude Haiku 4.5",
		ContextWindow:   200000,
		MaxOutputTokens: 64000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "fast",
	},
}
