// Package planner turns a user request into an ordered, prioritized
// task plan by prompting the model, with a deterministic fallback when
// the model's plan cannot be parsed.
package planner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/seanpoyner/ollama-code/internal/logging"
	"github.com/seanpoyner/ollama-code/internal/ollama"
	"github.com/seanpoyner/ollama-code/internal/task"
)

// ErrNoPlan indicates the model response contained no parseable task
// lines.
var ErrNoPlan = errors.New("no tasks found in model response")

const planPrompt = `You are a task planning assistant. Analyze the following request and create a detailed task plan.

User Request: %s

Create a list of specific, actionable tasks needed to complete this request. For each task:
1. Be specific about what needs to be done
2. Order tasks logically (dependencies first)
3. Assign priorities: HIGH (critical path), MEDIUM (important but not blocking), LOW (nice to have)

Format your response as:
TASK_PLAN_START
1. [HIGH] Task description here
2. [MEDIUM] Another task description
3. [LOW] Final task description
TASK_PLAN_END

Then provide a brief explanation of your approach.

Important guidelines:
- Create tasks specific to the actual request, not generic steps
- Include technical implementation details in task names
- Typical task count: 4-8 tasks
- First task should analyze/understand requirements by actually exploring files
- Make tasks concrete and actionable, not vague`

var (
	planBlockRe      = regexp.MustCompile(`(?s)TASK_PLAN_START\s*(.*?)\s*TASK_PLAN_END`)
	taskLineRe       = regexp.MustCompile(`^\d+\.?\s*\[(\w+)\]\s*(.+)$`)
	taskLineSuffixRe = regexp.MustCompile(`^\d+\.?\s*(.+?)\s*\[(\w+)\]$`)
	taskLineBareRe   = regexp.MustCompile(`^\d+\.?\s*(.+)$`)
	numberedLineRe   = regexp.MustCompile(`^\d+\.?\s*\[`)
)

// Chatter is the model call the planner depends on.
type Chatter interface {
	Chat(ctx context.Context, messages []ollama.Message) (string, error)
}

// Plan is an ordered task list plus the model's explanation of its
// approach.
type Plan struct {
	Tasks       []task.Draft
	Explanation string
}

// Planner produces task plans for complex requests.
type Planner struct {
	client Chatter
	log    zerolog.Logger
}

// New creates a planner backed by the given model client.
func New(client Chatter) *Planner {
	return &Planner{client: client, log: logging.Component("planner")}
}

// Plan asks the model for a task breakdown of the request. It returns
// ErrNoPlan (wrapped) when the response yields no tasks; callers fall
// back to Fallback.
func (p *Planner) Plan(ctx context.Context, request string) (Plan, error) {
	reply, err := p.client.Chat(ctx, []ollama.Message{
		{Role: "system", Content: "You are a helpful task planning assistant."},
		{Role: "user", Content: fmt.Sprintf(planPrompt, request)},
	})
	if err != nil {
		return Plan{}, fmt.Errorf("task planning failed: %w", err)
	}

	drafts := parseTasks(reply)
	if len(drafts) == 0 {
		p.log.Warn().Msg("no tasks found in model response")
		return Plan{}, fmt.Errorf("%w", ErrNoPlan)
	}

	return Plan{Tasks: drafts, Explanation: extractExplanation(reply)}, nil
}

// parseTasks pulls "N. [PRIORITY] description" lines out of a model
// response, preferring the content between the plan markers.
func parseTasks(response string) []task.Draft {
	var lines []string
	if m := planBlockRe.FindStringSubmatch(response); m != nil {
		lines = strings.Split(strings.TrimSpace(m[1]), "\n")
	} else {
		for _, line := range strings.Split(response, "\n") {
			if numberedLineRe.MatchString(strings.TrimSpace(line)) {
				lines = append(lines, line)
			}
		}
	}

	var drafts []task.Draft
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var content, priority string
		switch {
		case taskLineRe.MatchString(line):
			m := taskLineRe.FindStringSubmatch(line)
			priority, content = m[1], m[2]
		case taskLineSuffixRe.MatchString(line):
			m := taskLineSuffixRe.FindStringSubmatch(line)
			content, priority = m[1], m[2]
		case taskLineBareRe.MatchString(line):
			m := taskLineBareRe.FindStringSubmatch(line)
			content, priority = m[1], "MEDIUM"
		default:
			continue
		}

		drafts = append(drafts, task.Draft{
			Content:  strings.TrimSpace(content),
			Priority: task.ParsePriority(priority),
		})
	}
	return drafts
}

// extractExplanation returns up to three non-empty lines following the
// plan block.
func extractExplanation(response string) string {
	parts := strings.SplitN(response, "TASK_PLAN_END", 2)
	if len(parts) == 2 {
		var kept []string
		for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "TASK_") {
				continue
			}
			kept = append(kept, line)
			if len(kept) == 3 {
				break
			}
		}
		if len(kept) > 0 {
			return strings.Join(kept, "\n")
		}
	}
	return "I'll work through these tasks systematically to complete your request."
}

var analysisKeywords = []string{"analyze", "review", "understand", "explore", "examine", "investigate"}

// Fallback builds a deterministic plan when model planning fails.
func Fallback(request string) Plan {
	display := request
	if len(display) > 100 {
		display = display[:97] + "..."
	}

	lower := strings.ToLower(request)
	isAnalysis := false
	for _, kw := range analysisKeywords {
		if strings.Contains(lower, kw) {
			isAnalysis = true
			break
		}
	}

	firstTask := "Analyze requirements: " + display
	if isAnalysis {
		firstTask = "Thoroughly analyze requirements and explore the codebase by reading all relevant files completely: " + display
	}

	return Plan{
		Tasks: []task.Draft{
			{Content: firstTask, Priority: task.PriorityHigh},
			{Content: "Design the implementation approach", Priority: task.PriorityHigh},
			{Content: "Implement the main functionality", Priority: task.PriorityHigh},
			{Content: "Test and validate the implementation", Priority: task.PriorityMedium},
			{Content: "Document the solution", Priority: task.PriorityLow},
		},
		Explanation: "I'll break this down into systematic steps to complete your request.",
	}
}
