package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/pbc1017/hollon-ai-sub003/pkg/models"
)

// ClientConfig contains configuration for creating an AnthropicProvider.
type ClientConfig struct {
	// Model is the Claude model to use (e.g., anthropic.ModelClaudeSonnet4_20250514).
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// Timeout bounds a single API call. Zero means no deadline beyond
	// the caller's context.
	Timeout time.Duration
}

// AnthropicProvider implements Provider against the Anthropic API.
type AnthropicProvider struct {
	inner   anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	tracker *TokenTracker
}

var _ Provider = (*AnthropicProvider)(nil)

// NewAnthropicProvider creates a provider backed by the Anthropic API
// or AWS Bedrock, depending on the config.
func NewAnthropicProvider(cfg ClientConfig) (*AnthropicProvider, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	inner := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	return &AnthropicProvider{
		inner:   inner,
		model:   model,
		timeout: cfg.Timeout,
		tracker: NewTokenTracker(),
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock
// cross-region inference profile format: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}
	return model
}

// Tracker returns the token tracker for this provider.
func (p *AnthropicProvider) Tracker() *TokenTracker {
	return p.tracker
}

// Decompose implements Provider using a single text completion call.
func (p *AnthropicProvider) Decompose(ctx context.Context, req DecomposeRequest) (*Plan, error) {
	prompt := buildDecompositionPrompt(req)

	var specs []SubtaskSpec
	if err := p.runJSON(ctx, prompt, &specs); err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}

	plan := &Plan{Subtasks: specs}
	if err := plan.Validate(req.MaxSubtasks); err != nil {
		return nil, fmt.Errorf("decompose: %w", err)
	}
	return plan, nil
}

// Execute implements Provider. The model performs the work described by
// the task and reports the outcome as JSON.
func (p *AnthropicProvider) Execute(ctx context.Context, task *models.Task, worker *models.Worker) (*ExecutionResult, error) {
	prompt := buildExecutionPrompt(task, worker)

	var result struct {
		Success       bool     `json:"success"`
		Summary       string   `json:"summary"`
		FilesChanged  []string `json:"files_changed"`
		FailureReason string   `json:"failure_reason"`
	}
	if err := p.runJSON(ctx, prompt, &result); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &ExecutionResult{
		Success:       result.Success,
		Summary:       result.Summary,
		FilesChanged:  result.FilesChanged,
		FailureReason: result.FailureReason,
	}, nil
}

// run executes a prompt and returns the text response. No tools are
// provided; decomposition and execution reporting are plain completions.
func (p *AnthropicProvider) run(ctx context.Context, prompt string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	p.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	return result.String(), nil
}

// runJSON executes a prompt and parses the JSON response into target.
func (p *AnthropicProvider) runJSON(ctx context.Context, prompt string, target interface{}) error {
	response, err := p.run(ctx, prompt)
	if err != nil {
		return err
	}

	jsonStart := strings.Index(response, "{")
	if jsonStart == -1 {
		jsonStart = strings.Index(response, "[")
	}
	jsonEnd := strings.LastIndex(response, "}")
	if jsonEnd == -1 {
		jsonEnd = strings.LastIndex(response, "]")
	}

	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		return fmt.Errorf("no valid JSON found in response: %s", truncate(response, 200))
	}

	jsonStr := response[jsonStart : jsonEnd+1]
	if err := json.Unmarshal([]byte(jsonStr), target); err != nil {
		return fmt.Errorf("parse JSON: %w (response: %s)", err, truncate(jsonStr, 200))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func buildDecompositionPrompt(req DecomposeRequest) string {
	var b strings.Builder
	b.WriteString("Break the following task into smaller subtasks.\n\n")
	fmt.Fprintf(&b, "TASK: %s\n", req.Task.Title)
	if req.Task.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:\n%s\n", req.Task.Description)
	}
	if req.Task.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "ACCEPTANCE CRITERIA:\n%s\n", req.Task.AcceptanceCriteria)
	}

	if len(req.Members) > 0 {
		b.WriteString("\nAssign each subtask to one of these team members by hollon ID, matching required skills:\n")
		for _, m := range req.Members {
			fmt.Fprintf(&b, "- %s (%s): skills %s\n", m.HollonID, m.Name, strings.Join(m.Skills, ", "))
		}
	} else {
		b.WriteString("\nFor each subtask, name the worker role best suited to it (e.g., backend-dev, tester).\n")
	}

	if req.MaxSubtasks > 0 {
		fmt.Fprintf(&b, "\nProduce at most %d subtasks.\n", req.MaxSubtasks)
	}

	b.WriteString(`
Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "title": "short unique title",
    "description": "what to do and how to verify it",
    "depends_on": ["titles of prerequisite subtasks"],
    "type": "implementation|research|review|bug_fix|documentation",
    "priority": 2,
    "role": "worker role name",
    "assignee_hollon_id": "member hollon ID, or empty if none were listed",
    "skills": ["required skills"],
    "estimated_complexity": "low|medium|high",
    "story_points": 3
  }
]

Rules:
- Titles must be unique; depends_on entries must reference other titles in the array.
- Dependencies must not form cycles.
- Prefer independent subtasks that can run in parallel.`)
	return b.String()
}

func buildExecutionPrompt(task *models.Task, worker *models.Worker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a worker with skills: %s.\n\n", worker.Name, strings.Join(worker.Skills, ", "))
	fmt.Fprintf(&b, "Complete this task:\n\nTITLE: %s\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "DESCRIPTION:\n%s\n", task.Description)
	}
	if task.AcceptanceCriteria != "" {
		fmt.Fprintf(&b, "ACCEPTANCE CRITERIA:\n%s\n", task.AcceptanceCriteria)
	}
	if len(task.AffectedFiles) > 0 {
		fmt.Fprintf(&b, "AFFECTED FILES: %s\n", strings.Join(task.AffectedFiles, ", "))
	}
	b.WriteString(`
Return ONLY a JSON object with this exact structure (no other text):
{
  "success": true,
  "summary": "what was done",
  "files_changed": ["paths touched"],
  "failure_reason": "set only when success is false"
}`)
	return b.String()
}

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates the cost in USD based on current Claude pricing.
func (t *TokenTracker) Cost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Sonnet pricing: $3/1M input, $15/1M output (approximate)
	inputCost := float64(t.inputTok) / 1_000_000 * 3.0
	outputCost := float64(t.outputTok) / 1_000_000 * 15.0
	return inputCost + outputCost
}
