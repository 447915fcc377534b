package exec

// StepResult is returned by every step executor (spec.md §4.H).
type StepResult struct {
	Success bool
	StepId  string
	Output  any
	Error   error
	Halted  bool
}

func ok(stepId string, output any) StepResult {
	return StepResult{Success: true, StepId: stepId, Output: output}
}

func fail(stepId string, err error) StepResult {
	return StepResult{Success: false, StepId: stepId, Error: err}
}
