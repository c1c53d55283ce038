// Package subtask breaks a coarse task down into minimal, directly
// executable steps. Free-form delegation to a model tends to produce
// explanatory prose instead of action; constraining each step to one
// exact snippet removes that ambiguity.
package subtask

import "strings"

// Type labels the kind of action a sub-task performs.
type Type string

const (
	TypeExplore Type = "explore" // read files, search the workspace
	TypeCreate  Type = "create"  // create new files
	TypeModify  Type = "modify"  // modify existing files
	TypeExecute Type = "execute" // run commands
	TypeTest    Type = "test"    // run or author tests
)

// SubTask is a single executable step. Code holds the exact snippet to
// run; an empty Code signals free-form execution. ExpectedOutput, when
// set, is a substring used for lightweight success checking.
type SubTask struct {
	Type           Type
	Description    string
	Code           string
	ExpectedOutput string
}

// Category is a task's classification, attached once at classification
// time so call sites never re-derive it from the raw content.
type Category string

const (
	CategoryCreate  Category = "create"
	CategoryTest    Category = "test"
	CategoryExplore Category = "explore"
	CategoryModify  Category = "modify"
	CategoryExecute Category = "execute"
)

// Keyword sets per category. A word of task content matching any entry
// marks the category as a candidate. Creation keywords are verbs and
// artifact nouns that imply authoring a new file; plain objects like
// "server" or "script" stay out so that "run the server" or "update the
// script" resolve to their own verbs.
var (
	createKeywords = []string{
		"create", "write", "implement", "build",
		"endpoint", "backend", "service",
	}
	testKeywords = []string{
		"test", "tests", "unittest", "unit-test",
	}
	exploreKeywords = []string{
		"analyze", "analyse", "explore", "gather", "investigate",
		"examine", "review", "understand", "document", "thoroughly",
	}
	modifyKeywords = []string{
		"modify", "update", "edit", "fix", "refactor", "change",
	}
	executeKeywords = []string{
		"run", "execute", "launch", "start",
	}
)

// Classify determines a task's category from its content. When several
// keyword sets match, the most specific intent wins:
// create > test > explore > modify > execute. Content matching nothing
// falls through to execute, the free-form category.
func Classify(content string) Category {
	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, createKeywords):
		return CategoryCreate
	case containsAny(lower, testKeywords):
		return CategoryTest
	case containsAny(lower, exploreKeywords):
		return CategoryExplore
	case containsAny(lower, modifyKeywords):
		return CategoryModify
	default:
		return CategoryExecute
	}
}

func containsAny(content string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
