package gemini

import "github.com/shaneholloman/automaker/internal/provider"

var models = []provider.ModelDefinition{
	{
		ID:              "gemini-2.5-flash",
		DisplayName:     "Gemini 2.5 Flash",
		ContextWindow:   1048576,
		MaxOutputTokens: 65536,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "fast",
		IsDefault:       true,
	},
	{
		ID:              "gemini-2.5-pro",
		DisplayName:     "Gemini 2.5 Pro",
		ContextWindow:   1048576,
		MaxOutputTokens: 65536,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "premium",
	},
	{
		ID:              "gemini-2.5-flash-lite",
		DisplayName:     "Gemini 2.5 Flash Lite",
		ContextWindow:   1048576,
		MaxOutputTokens: 65536,
		SupportsVision:  true,
		SupportsTools:   true,
		Tier:            "economy",
	},
}
