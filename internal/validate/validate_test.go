package validate

import (
	"errors"
	"strings"
	"testing"
)

// fakeFiles builds a Validator whose ReadFile serves from a map.
func fakeFiles(files map[string]string) *Validator {
	return &Validator{
		ReadFile: func(path string) ([]byte, error) {
			content, ok := files[path]
			if !ok {
				return nil, errors.New("not found")
			}
			return []byte(content), nil
		},
	}
}

func TestNoFilesCreated(t *testing.T) {
	v := fakeFiles(nil)

	result := v.Validate(
		"create a backend endpoint for models",
		"I would create a Flask application that serves the models.",
		nil,
	)

	if result.Passed {
		t.Fatal("expected failure")
	}
	if result.Reason != ReasonNoFilesCreated {
		t.Errorf("reason = %q, want %q", result.Reason, ReasonNoFilesCreated)
	}
	if !strings.Contains(result.Feedback, "write_file") {
		t.Error("feedback should instruct the model to call write_file")
	}
}

func TestSideEffectEvidenceSatisfiesFileIntent(t *testing.T) {
	v := fakeFiles(nil)

	result := v.Validate(
		"create the project directory",
		"bash: mkdir -p ollama-chat\nCommand executed successfully",
		nil,
	)

	if !result.Passed {
		t.Fatalf("expected pass with durable side-effect evidence, got %q: %s", result.Reason, result.Feedback)
	}
}

func TestPlaceholderInResultText(t *testing.T) {
	v := fakeFiles(nil)

	result := v.Validate(
		"create a client for the chat API backed by ollama",
		"Created file: client.py\nclient.py uses YOUR_API_KEY to authenticate",
		[]string{"client.py"},
	)

	if result.Passed || result.Reason != ReasonPlaceholderContent {
		t.Fatalf("expected placeholder failure, got %+v", result)
	}
	if !strings.Contains(result.Feedback, "YOUR_API_KEY") {
		t.Error("feedback should name the offending marker")
	}
}

func TestPlaceholderInCreatedFile(t *testing.T) {
	v := fakeFiles(map[string]string{
		"app.py": "import requests\nurl = \"https://api.example.com/v1\"\n",
	})

	result := v.Validate(
		"create a client for the chat API",
		"Created file: app.py",
		[]string{"app.py"},
	)

	if result.Passed || result.Reason != ReasonPlaceholderContent {
		t.Fatalf("expected placeholder failure from file content, got %+v", result)
	}
}

func TestWrongEndpoint(t *testing.T) {
	v := fakeFiles(map[string]string{
		"ollama_backend.py": "import requests\n",
	})

	result := v.Validate(
		"create a backend endpoint for models",
		"Created file: ollama_backend.py\nThe backend fetches from /api/models on the Ollama server.",
		[]string{"ollama_backend.py"},
	)

	if result.Passed || result.Reason != ReasonWrongEndpoint {
		t.Fatalf("expected wrong-endpoint failure, got %+v", result)
	}
	for _, ep := range []string{"/api/generate", "/api/chat", "/api/tags", "/api/embeddings"} {
		if !strings.Contains(result.Feedback, ep) {
			t.Errorf("feedback should list valid endpoint %s", ep)
		}
	}
	if !strings.Contains(result.Feedback, "/api/models") {
		t.Error("feedback should name the invalid endpoint")
	}
}

func TestValidEndpointsPass(t *testing.T) {
	v := fakeFiles(map[string]string{
		"ollama_backend.py": "import requests\n",
	})

	result := v.Validate(
		"create a backend endpoint for models",
		"Created file: ollama_backend.py\nIt calls /api/tags and /api/chat on localhost:11434.",
		[]string{"ollama_backend.py"},
	)

	if !result.Passed {
		t.Fatalf("expected pass, got %q: %s", result.Reason, result.Feedback)
	}
}

func TestEmptyTestBody(t *testing.T) {
	v := fakeFiles(map[string]string{
		"test_app.py": "import unittest\n\nclass TestApp(unittest.TestCase):\n    def test_models(self):\n        pass\n",
	})

	result := v.Validate(
		"write unit tests for the models module",
		"Created file: test_app.py",
		[]string{"test_app.py"},
	)

	if result.Passed || result.Reason != ReasonEmptyTestBody {
		t.Fatalf("expected empty-test-body failure, got %+v", result)
	}
	if !strings.Contains(result.Feedback, "assert") {
		t.Error("feedback should show real assertions")
	}
}

func TestRealTestBodyPasses(t *testing.T) {
	v := fakeFiles(map[string]string{
		"test_app.py": "import unittest\n\nclass TestApp(unittest.TestCase):\n    def test_models(self):\n        self.assertEqual(1 + 1, 2)\n",
	})

	result := v.Validate(
		"write unit tests for the models module",
		"Created file: test_app.py\nRan 1 test, OK",
		[]string{"test_app.py"},
	)

	if !result.Passed {
		t.Fatalf("expected pass, got %q: %s", result.Reason, result.Feedback)
	}
}

func TestExecutionError(t *testing.T) {
	v := fakeFiles(map[string]string{"app.py": "print('hi')\n"})

	result := v.Validate(
		"create the application entry point",
		"Created file: app.py\nTraceback (most recent call last):\n  File \"app.py\", line 3\nNameError: name 'foo' is not defined",
		[]string{"app.py"},
	)

	if result.Passed || result.Reason != ReasonExecutionError {
		t.Fatalf("expected execution-error failure, got %+v", result)
	}
	if !strings.Contains(result.Feedback, "NameError") {
		t.Errorf("feedback should carry the extracted error, got %q", result.Feedback)
	}
}

func TestCancelledStepIsExecutionError(t *testing.T) {
	// Denied or timed-out confirmations cancel a step. The attempt must
	// fail as an execution error even when the task has no file intent.
	v := fakeFiles(nil)

	tests := []struct {
		name       string
		task       string
		resultText string
	}{
		{"denied command", "launch the benchmark suite", "Command cancelled by user"},
		{"denied file write", "launch the app", "File write cancelled: app.py"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.task, tt.resultText, nil)
			if result.Passed {
				t.Fatal("expected failure for cancelled step")
			}
			if result.Reason != ReasonExecutionError {
				t.Errorf("reason = %q, want %q", result.Reason, ReasonExecutionError)
			}
			if !strings.Contains(result.Feedback, "cancelled") {
				t.Errorf("feedback should mention the cancelled step, got %q", result.Feedback)
			}
		})
	}
}

func TestExplorationPassesOnReadEvidence(t *testing.T) {
	v := fakeFiles(nil)

	result := v.Validate(
		"analyze the project structure",
		"list_files() returned ['app.py', 'README.md']\nThe project is a small Flask app.",
		nil,
	)

	if !result.Passed {
		t.Fatalf("exploration with read evidence should pass, got %q: %s", result.Reason, result.Feedback)
	}
}

func TestExplorationFailsWithoutEvidence(t *testing.T) {
	v := fakeFiles(nil)

	result := v.Validate(
		"analyze the project structure",
		"The project is probably a web application of some kind.",
		nil,
	)

	if result.Passed || result.Reason != ReasonOther {
		t.Fatalf("expected failure for speculation without exploration, got %+v", result)
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v := fakeFiles(map[string]string{"app.py": "print('ok')\n"})

	first := v.Validate("create app.py", "Created file: app.py", []string{"app.py"})
	second := v.Validate("create app.py", "Created file: app.py", []string{"app.py"})

	if first != second {
		t.Errorf("identical inputs produced different results: %+v vs %+v", first, second)
	}
}

func TestCleanResultPasses(t *testing.T) {
	v := fakeFiles(map[string]string{
		"hello.py": "def greet(name):\n    return f\"hello {name}\"\n",
	})

	result := v.Validate(
		"create a greeting script",
		"Created file: hello.py\nhello world",
		[]string{"hello.py"},
	)

	if !result.Passed {
		t.Fatalf("expected pass, got %q: %s", result.Reason, result.Feedback)
	}
}

func TestExtractErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{"typed error", "ValueError: invalid literal for int()", "ValueError: invalid literal for int()"},
		{"generic error", "Error: something broke", "something broke"},
		{"unknown", "nothing to see here", "unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractErrorMessage(tt.result); got != tt.want {
				t.Errorf("extractErrorMessage(%q) = %q, want %q", tt.result, got, tt.want)
			}
		})
	}
}
