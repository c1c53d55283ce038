package validate

import (
	"fmt"
	"strings"

	"github.com/seanpoyner/ollama-code/internal/ollama"
)

// Feedback templates, one per failure reason. These are what make
// retries converge instead of repeating the same mistake: each template
// tells the model exactly what acceptable output looks like.

const noFilesFeedback = `No files were created. You MUST use write_file() inside a python code block to create actual files. Showing file contents in a code block does not create a file.

Correct approach:
` + "```python" + `
write_file("app.py", """actual file contents""")
` + "```"

const placeholderFeedback = `Replace every placeholder with a working implementation. Do not use example hosts, dummy API keys, or TODO stubs.`

const emptyTestFeedback = `The test functions contain only no-op statements. Write real test logic with assertions, covering both success and failure cases:

` + "```python" + `
import unittest
from unittest.mock import patch, Mock

class TestOllamaIntegration(unittest.TestCase):
    @patch("requests.get")
    def test_get_models_success(self, mock_get):
        mock_response = Mock()
        mock_response.json.return_value = {"models": [{"name": "llama2"}]}
        mock_get.return_value = mock_response
        models = fetch_available_models()
        self.assertEqual(models[0]["name"], "llama2")
` + "```"

const explorationFeedback = `No exploration was performed. Gather information by actually executing read actions, for example:

` + "```python" + `
content = read_file("OLLAMA.md")
print(content[:1000])
` + "```" + `

then summarize what you found.`

// endpointFeedback lists the verified endpoint set with a worked example,
// naming the invalid path that was referenced.
func endpointFeedback(invalid string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The endpoint %s does not exist on the Ollama API. The only valid endpoints are:\n", invalid)
	for _, ep := range ollama.ValidEndpoints() {
		fmt.Fprintf(&sb, "  - %s\n", ep)
	}
	sb.WriteString(`
All requests go to http://localhost:11434. Worked example:

` + "```python" + `
import requests

response = requests.post(
    "http://localhost:11434` + ollama.EndpointChat + `",
    json={
        "model": "llama2",
        "messages": [{"role": "user", "content": "hello"}],
        "stream": False,
    },
    timeout=30,
)
print(response.json()["message"]["content"])
` + "```" + `

To list installed models use GET http://localhost:11434` + ollama.EndpointTags + `.`)
	return sb.String()
}
