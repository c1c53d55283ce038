package loop

import (
	"fmt"
	"strings"

	"github.com/seanpoyner/ollama-code/internal/agent"
	"github.com/seanpoyner/ollama-code/internal/subtask"
	"github.com/seanpoyner/ollama-code/internal/task"
)

// maxSummaryNarrative bounds the free-text portion of a result summary.
// Created filenames are never dropped, whatever their count.
const maxSummaryNarrative = 600

// buildTaskContext assembles the prompt for one task attempt: retry
// feedback first when present, then the task, the original request,
// prior task results, execution rules, and the decomposed sub-task
// snippets.
func buildTaskContext(request string, t task.Task, completed []task.Task, subs []subtask.SubTask) string {
	var sb strings.Builder

	// Feedback from the failed attempt leads for salience.
	if t.Feedback != "" {
		sb.WriteString(fmt.Sprintf("PREVIOUS ATTEMPT FAILED (this is attempt %d of %d).\n", t.RetryCount+1, task.MaxRetries+1))
		sb.WriteString("Address this feedback before anything else:\n")
		sb.WriteString(t.Feedback)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Please complete the following task:\n\n")
	sb.WriteString(t.Content)
	sb.WriteString("\n\n")

	if request != "" {
		sb.WriteString("## Original Request\n")
		sb.WriteString(request)
		sb.WriteString("\n\n")
	}

	if len(completed) > 0 {
		sb.WriteString("## Results from Previous Tasks\n")
		for i, prev := range completed {
			sb.WriteString(fmt.Sprintf("\n### Task %d: %s\n", i+1, clipLine(prev.Content, 80)))
			if prev.ResultSummary != "" {
				sb.WriteString(prev.ResultSummary)
				sb.WriteString("\n")
			} else {
				sb.WriteString("No specific results recorded.\n")
			}
		}
		sb.WriteString("\nUse these results. Build on what was discovered and created in previous tasks.\n\n")
	}

	sb.WriteString(executionRules)

	if len(subs) > 0 {
		sb.WriteString("\n## Execution Steps\n")
		sb.WriteString("Execute the steps below in order, one code block at a time. Do not add explanations.\n")
		for i, sub := range subs {
			sb.WriteString(fmt.Sprintf("\n[STEP %d: %s] %s\n", i+1, strings.ToUpper(string(sub.Type)), sub.Description))
			if sub.Code != "" {
				sb.WriteString("```python\n")
				sb.WriteString(sub.Code)
				sb.WriteString("\n```\n")
			}
		}
	}

	return sb.String()
}

const executionRules = `CRITICAL EXECUTION RULES:
1. Use ` + "```python" + ` code blocks for ALL file creation.
2. Call write_file() inside the Python code blocks.
3. Never use ` + "```html, ```css, or ```javascript" + ` blocks.
4. Never just show file content without write_file(); showing content does not create a file.
5. Task validation requires actual files to be created when the task asks for them.
`

// summarizeResult produces the bounded result summary stored on a
// completed task. The created-file list is preserved in full; the
// narrative is trimmed.
func summarizeResult(res agent.Result) string {
	var sb strings.Builder
	if len(res.FilesCreated) > 0 {
		sb.WriteString("Created files: ")
		sb.WriteString(strings.Join(res.FilesCreated, ", "))
		sb.WriteString("\n")
	}

	narrative := strings.TrimSpace(res.Text)
	if len(narrative) > maxSummaryNarrative {
		narrative = narrative[:maxSummaryNarrative] + "…"
	}
	sb.WriteString(narrative)
	return sb.String()
}

func clipLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
