package brain

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// RoleTemplate describes a canned worker role used when decomposing
// without an API-backed provider.
type RoleTemplate struct {
	// Name is the role name (e.g., "backend-dev").
	Name string `yaml:"name"`
	// Skills lists the skills the role carries.
	Skills []string `yaml:"skills"`
	// Focus is a short phrase describing the role's slice of the work.
	Focus string `yaml:"focus"`
}

type roleTemplateFile struct {
	Roles []RoleTemplate `yaml:"roles"`
}

// DefaultRoleTemplates is the built-in role set used when no template
// file is configured.
var DefaultRoleTemplates = []RoleTemplate{
	{Name: "implementer", Skills: []string{"implementation"}, Focus: "core implementation"},
	{Name: "tester", Skills: []string{"testing"}, Focus: "tests and verification"},
}

// LoadRoleTemplates reads role templates from a YAML file.
func LoadRoleTemplates(path string) ([]RoleTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role templates: %w", err)
	}

	var f roleTemplateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse role templates: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, fmt.Errorf("role template file %s defines no roles", path)
	}
	for _, r := range f.Roles {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("role template with empty name in %s", path)
		}
	}
	return f.Roles, nil
}

// TemplateProvider is a deterministic Provider that plans one subtask
// per role template. It is the fallback when API decomposition fails
// or no API key is configured.
type TemplateProvider struct {
	roles []RoleTemplate
}

var _ Provider = (*TemplateProvider)(nil)

// NewTemplateProvider creates a provider over the given role templates.
// A nil or empty role list falls back to DefaultRoleTemplates.
func NewTemplateProvider(roles []RoleTemplate) *TemplateProvider {
	if len(roles) == 0 {
		roles = DefaultRoleTemplates
	}
	return &TemplateProvider{roles: roles}
}

// Decompose produces one subtask per role, capped by MaxSubtasks. Each
// subtask after the first depends on the one before it, so the plan
// always degrades to a safe sequential pipeline.
func (p *TemplateProvider) Decompose(_ context.Context, req DecomposeRequest) (*Plan, error) {
	roles := p.roles
	if req.MaxSubtasks > 0 && len(roles) > req.MaxSubtasks {
		roles = roles[:req.MaxSubtasks]
	}

	plan := &Plan{}
	var prevTitle string
	for i, role := range roles {
		title := fmt.Sprintf("%s: %s", req.Task.Title, role.Focus)
		spec := SubtaskSpec{
			Title:               title,
			Description:         fmt.Sprintf("%s\n\nFocus: %s", req.Task.Description, role.Focus),
			Type:                models.TaskTypeImplementation,
			Priority:            req.Task.Priority,
			RoleName:            role.Name,
			Skills:              role.Skills,
			EstimatedComplexity: models.ComplexityMedium,
			StoryPoints:         2,
		}
		if prevTitle != "" {
			spec.DependsOn = []string{prevTitle}
		}
		if len(req.Members) > 0 {
			spec.AssigneeHollonID = req.Members[i%len(req.Members)].HollonID
		}
		plan.Subtasks = append(plan.Subtasks, spec)
		prevTitle = title
	}

	if err := plan.Validate(req.MaxSubtasks); err != nil {
		return nil, err
	}
	return plan, nil
}

// Execute reports the task as not completed. Template-planned work
// still needs a real executor; this keeps dry runs from marking tasks
// done without any work happening.
func (p *TemplateProvider) Execute(_ context.Context, task *models.Task, worker *models.Worker) (*ExecutionResult, error) {
	return &ExecutionResult{
		Success:       false,
		Summary:       fmt.Sprintf("no execution backend configured for %s", worker.Name),
		FailureReason: fmt.Sprintf("task %s requires an API-backed provider to execute", task.ID),
	}, nil
}
