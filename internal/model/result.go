package model

// PathError records a detection failure isolated to a single path.
type PathError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// DetectionResult is the aggregate outcome of one detection run.
type DetectionResult struct {
	Success      bool        `json:"success"`
	Conflicts    []Conflict  `json:"conflicts"`
	CheckedPaths []string    `json:"checked_paths"`
	Errors       []PathError `json:"errors"`
}

// ResolutionResult is the outcome of resolving a single conflict.
type ResolutionResult struct {
	Success  bool     `json:"success"`
	Conflict Conflict `json:"conflict"`
	Error    string   `json:"error,omitempty"`
}
