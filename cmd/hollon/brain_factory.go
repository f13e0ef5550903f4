package main

import (
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/pbc1017/hollon-ai-sub003/internal/brain"
	"github.com/pbc1017/hollon-ai-sub003/internal/config"
)

// newBrainProvider builds the provider used for execution and primary
// decomposition. Offline mode forces the deterministic role-template
// provider, which never executes work successfully.
func newBrainProvider(cfg *config.Config, offline bool) (brain.Provider, error) {
	if offline {
		return newTemplateProvider(cfg)
	}

	hasKey := cfg.Anthropic.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
	if !hasKey && !cfg.Anthropic.UseAWSBedrock {
		return nil, fmt.Errorf("no Anthropic credentials configured\n\n" +
			"Set ANTHROPIC_API_KEY, configure anthropic.api_key in .hollon.yaml,\n" +
			"or enable anthropic.use_aws_bedrock. Use --offline to run without\n" +
			"an execution backend (tasks will be decomposed but never completed).")
	}

	provider, err := brain.NewAnthropicProvider(brain.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
		Timeout:       cfg.Anthropic.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create brain provider: %w", err)
	}
	return provider, nil
}

// newTemplateProvider loads the configured role template file, or the
// built-in defaults when none is configured.
func newTemplateProvider(cfg *config.Config) (brain.Provider, error) {
	if cfg.Delegation.RoleTemplatePath != "" {
		roles, err := brain.LoadRoleTemplates(cfg.Delegation.RoleTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("load role templates: %w", err)
		}
		return brain.NewTemplateProvider(roles), nil
	}
	return brain.NewTemplateProvider(nil), nil
}
