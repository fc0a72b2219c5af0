package cursor

import "github.com/shaneholloman/automaker/internal/provider"

var models = []provider.ModelDefinition{
	{
		ID:              "composer-1",
		DisplayName:     "Composer 1",
		ContextWindow:   200000,
		MaxOutputTokens: 32000,
		SupportsVision:  false,
		SupportsTools:   true,
		Tier:            "fast",
		IsDefault:       true,
	},
	{
		ID:              "sonnet-4.5",
		DisplayName:     "Claude Sonnet 4.5",
		ContextWindow:   200000,
		MaxOutputTokens: 64000,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "standard",
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
}
