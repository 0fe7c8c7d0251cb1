package tools

import "context"

// The sandboxed code-execution runtime is an external collaborator. Only its
// invocation contract lives here; the submission tool consumes it verbatim.

// Submission is one candidate solution to run against challenge test cases.
type Submission struct {
	Language  string
	Code      string
	TestCases []TestCase
}

// TestResult is the outcome of one test case.
type TestResult struct {
	Input          any    `json:"input"`
	ExpectedOutput any    `json:"expected_output"`
	ActualOutput   any    `json:"actual_output"`
	Passed         bool   `json:"passed"`
	Error          string `json:"error,omitempty"`
}

// ExecutionResult is the sandbox's verdict on a submission. Stdout, stderr,
// and pass counts feed the feedback-stage prompt unmodified.
type ExecutionResult struct {
	Status     string       `json:"status"`
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"`
	PassCount  int          `json:"pass_count"`
	TotalTests int          `json:"total_tests"`
	Details    []TestResult `json:"detailed_results,omitempty"`
}

// Runner executes candidate code in an isolated environment.
type Runner interface {
	Run(ctx context.Context, sub Submission) (ExecutionResult, error)
}
