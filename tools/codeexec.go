package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/scholarkit/scholarkit-go/scholarkit"
)

const (
	defaultExecTimeout   = 30 * time.Second
	defaultMaxOutputSize = 64 * 1024
)

// CodeExecTool runs short Python snippets in a subprocess.
//
// Each execution writes the snippet to a fresh temporary directory, runs the
// configured interpreter with that directory as the working directory, and
// captures stdout/stderr with a deadline and an output cap. This is process
// isolation only, not a security boundary: do not expose it to untrusted
// callers without an external sandbox.
type CodeExecTool struct {
	interpreter   string
	timeout       time.Duration
	maxOutputSize int
}

// CodeExecOption configures a CodeExecTool.
type CodeExecOption func(*CodeExecTool)

// WithInterpreter overrides the interpreter binary (default python3).
func WithInterpreter(path string) CodeExecOption {
	return func(t *CodeExecTool) {
		t.interpreter = path
	}
}

// WithExecTimeout overrides the per-execution deadline.
func WithExecTimeout(d time.Duration) CodeExecOption {
	return func(t *CodeExecTool) {
		t.timeout = d
	}
}

// WithMaxOutputSize overrides the per-stream output cap in bytes.
func WithMaxOutputSize(n int) CodeExecOption {
	return func(t *CodeExecTool) {
		t.maxOutputSize = n
	}
}

// NewCodeExecTool creates a code execution tool.
func NewCodeExecTool(opts ...CodeExecOption) *CodeExecTool {
	t := &CodeExecTool{
		interpreter:   "python3",
		timeout:       defaultExecTimeout,
		maxOutputSize: defaultMaxOutputSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool identifier.
func (t *CodeExecTool) Name() string {
	return "code_interpreter"
}

// Description returns what the tool does, phrased for the model.
func (t *CodeExecTool) Description() string {
	return "Execute a Python code snippet and return its stdout, stderr, and exit code. Use print() to produce output."
}

// Schema returns the JSON Schema for the tool's parameters.
func (t *CodeExecTool) Schema() scholarkit.Schema {
	return scholarkit.Schema{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "The Python code to execute",
			},
		},
		"required": []string{"code"},
	}
}

// ExecOutput is the result of one code execution.
type ExecOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Execute runs params["code"] under the interpreter.
//
// A non-zero exit or a timeout is reported as an unsuccessful ToolResult so
// the model can see the failure; an error return is reserved for problems
// in the tool itself (temp dir creation, interpreter missing).
func (t *CodeExecTool) Execute(ctx context.Context, params map[string]interface{}) (*scholarkit.ToolResult, error) {
	code, _ := params["code"].(string)
	if code == "" {
		return scholarkit.NewToolError("missing required parameter \"code\""), nil
	}

	workDir, err := os.MkdirTemp("", "scholarkit-exec-*")
	if err != nil {
		return nil, fmt.Errorf("create execution dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, "snippet.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o600); err != nil {
		return nil, fmt.Errorf("write snippet: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, t.interpreter, scriptPath)
	cmd.Dir = workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if execCtx.Err() == context.DeadlineExceeded {
		return scholarkit.NewToolError(fmt.Sprintf("execution timed out after %s", t.timeout)).
			WithMetadata("duration_ms", elapsed.Milliseconds()), nil
	}

	output := ExecOutput{
		Stdout: truncateOutput(stdout.String(), t.maxOutputSize),
		Stderr: truncateOutput(stderr.String(), t.maxOutputSize),
	}

	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("run interpreter %q: %w", t.interpreter, runErr)
		}
		output.ExitCode = exitErr.ExitCode()

		result := scholarkit.NewToolError(fmt.Sprintf("execution failed with exit code %d", output.ExitCode))
		result.Data = output
		return result.WithMetadata("duration_ms", elapsed.Milliseconds()), nil
	}

	return scholarkit.NewToolResult(output).
		WithMetadata("duration_ms", elapsed.Milliseconds()), nil
}

// truncateOutput caps a captured stream, marking the cut.
func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... [output truncated]"
}

var _ scholarkit.Tool = (*CodeExecTool)(nil)
