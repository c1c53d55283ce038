// Package validate decides whether a task's execution result constitutes
// real completion, as opposed to placeholder output or an explanation of
// what would be done.
package validate

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/seanpoyner/ollama-code/internal/ollama"
	"github.com/seanpoyner/ollama-code/internal/subtask"
)

// Reason classifies why a result failed validation.
type Reason string

const (
	ReasonNoFilesCreated     Reason = "no_files_created"
	ReasonPlaceholderContent Reason = "placeholder_content"
	ReasonWrongEndpoint      Reason = "wrong_endpoint"
	ReasonEmptyTestBody      Reason = "empty_test_body"
	ReasonExecutionError     Reason = "execution_error"
	ReasonOther              Reason = "other"
)

// Result is the outcome of validating one task attempt. Feedback is
// corrective text meant for reinjection into the next attempt's prompt.
type Result struct {
	Passed   bool
	Reason   Reason
	Feedback string
}

func passed() Result {
	return Result{Passed: true}
}

func failed(reason Reason, feedback string) Result {
	return Result{Reason: reason, Feedback: feedback}
}

// Validator inspects task results. ReadFile is injectable so tests can
// supply file contents without touching disk; it defaults to os.ReadFile.
type Validator struct {
	ReadFile func(path string) ([]byte, error)
}

// New creates a Validator reading created files from disk.
func New() *Validator {
	return &Validator{ReadFile: os.ReadFile}
}

// Keywords that signal a task is expected to produce files.
var fileIntentKeywords = []string{
	"create", "write", "implement", "develop", "build",
	"script", "endpoint", "test",
}

// Literal tokens that mark generated content as a placeholder rather
// than a working implementation.
var placeholderMarkers = []string{
	"YOUR_API_KEY",
	"api.example.com",
	"https://api.ollama.com",
	"# Implementation here",
	"# Your code here",
	"pass  # TODO",
	"// TODO",
	"<!-- TODO -->",
	"TODO: implement",
}

// Evidence in result text that a durable side effect happened even when
// the caller's files-created set is empty (e.g. a directory was made).
var sideEffectMarkers = []string{
	"created file:",
	"wrote to ",
	"updated existing file:",
	"command executed successfully",
}

// Evidence that an exploration task actually gathered information.
var explorationMarkers = []string{
	"read_file", "list_files", "bash(", "search_docs", "get_api_info", "grep ",
}

// Markers of an unhandled runtime failure in the result text. Declined
// or timed-out confirmations count: a skipped step must surface as a
// failure, never as silent success.
var errorMarkers = []string{
	"Traceback (most recent call last)",
	"Exception:",
	"SyntaxError",
	"command timed out",
	"FAILED (errors=",
	"FAILED (failures=",
	"Command cancelled by user",
	"File write cancelled:",
}

var (
	endpointRe  = regexp.MustCompile(`/api/[a-z_]+`)
	emptyTestRe = regexp.MustCompile(`(?m)def test_\w+\([^)]*\):\s*\n\s*(pass|\.\.\.)\s*$`)
	typedErrRe  = regexp.MustCompile(`(\w+(?:Error|Exception)): (.+)`)
	errMsgRe    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Exception: (.+)`),
		regexp.MustCompile(`(?i)Error: (.+)`),
		regexp.MustCompile(`(?i)Failed: (.+)`),
	}
)

// Validate runs the ordered checks against one task attempt. First match
// wins. It is a pure function of its inputs (plus the contents of the
// created files), so identical inputs always yield identical results.
func (v *Validator) Validate(taskContent, resultText string, filesCreated []string) Result {
	lower := strings.ToLower(taskContent)
	category := subtask.Classify(taskContent)

	// Exploration tasks are not expected to produce files. They pass on
	// evidence of at least one information-gathering action.
	if category == subtask.CategoryExplore {
		if containsAnyFold(resultText, explorationMarkers) {
			return passed()
		}
		return failed(ReasonOther, explorationFeedback)
	}

	corpus := resultText + "\n" + v.readAll(filesCreated)

	// 1. File-producing intent with nothing durable to show for it.
	if containsAny(lower, fileIntentKeywords) && len(filesCreated) == 0 &&
		!containsAnyFold(resultText, sideEffectMarkers) {
		return failed(ReasonNoFilesCreated, noFilesFeedback)
	}

	// 2. Placeholder content anywhere in the result or the created files.
	for _, marker := range placeholderMarkers {
		if strings.Contains(corpus, marker) {
			return failed(ReasonPlaceholderContent,
				fmt.Sprintf("Output contains the placeholder %q. %s", marker, placeholderFeedback))
		}
	}

	// 3. Ollama API integration referencing an endpoint that doesn't exist.
	if concernsServingAPI(lower) {
		if bad := firstInvalidEndpoint(resultText); bad != "" {
			return failed(ReasonWrongEndpoint, endpointFeedback(bad))
		}
	}

	// 4. Test authoring that produced only no-op test bodies.
	if concernsTests(lower) && emptyTestRe.MatchString(corpus) {
		return failed(ReasonEmptyTestBody, emptyTestFeedback)
	}

	// 5. Unhandled runtime failure.
	for _, marker := range errorMarkers {
		if strings.Contains(resultText, marker) {
			return failed(ReasonExecutionError,
				fmt.Sprintf("Execution failed: %s. Fix the error and try again.", extractErrorMessage(resultText)))
		}
	}

	return passed()
}

// ExecutionFailure builds the validation outcome for a model or sandbox
// call that errored or timed out before producing a result. It consumes
// a retry like any other failed validation.
func ExecutionFailure(detail string) Result {
	return failed(ReasonExecutionError,
		fmt.Sprintf("The previous attempt did not finish: %s. Retry with a smaller, simpler step.", detail))
}

func (v *Validator) readAll(paths []string) string {
	readFile := v.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	var sb strings.Builder
	for _, path := range paths {
		data, err := readFile(path)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func concernsServingAPI(lowerContent string) bool {
	for _, kw := range []string{"ollama", "endpoint", "backend", "api", "model"} {
		if strings.Contains(lowerContent, kw) {
			return true
		}
	}
	return false
}

func concernsTests(lowerContent string) bool {
	return strings.Contains(lowerContent, "test")
}

// firstInvalidEndpoint scans result text for /api/ paths outside the
// known-valid Ollama set.
func firstInvalidEndpoint(resultText string) string {
	valid := ollama.ValidEndpoints()
	for _, match := range endpointRe.FindAllString(resultText, -1) {
		ok := false
		for _, v := range valid {
			if match == v {
				ok = true
				break
			}
		}
		if !ok {
			return match
		}
	}
	return ""
}

// extractErrorMessage pulls a short error description out of result text.
// Typed errors keep their type name; generic markers keep just the message.
func extractErrorMessage(resultText string) string {
	if m := typedErrRe.FindStringSubmatch(resultText); m != nil {
		return clip(m[1] + ": " + strings.TrimSpace(m[2]))
	}
	for _, re := range errMsgRe {
		if m := re.FindStringSubmatch(resultText); m != nil {
			return clip(strings.TrimSpace(m[1]))
		}
	}
	if strings.Contains(resultText, "Traceback (most recent call last)") {
		return "unhandled Python traceback"
	}
	if strings.Contains(resultText, "cancelled") {
		return "a step was cancelled before it ran"
	}
	return "unknown error"
}

func clip(msg string) string {
	if len(msg) > 100 {
		return msg[:100]
	}
	return msg
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
