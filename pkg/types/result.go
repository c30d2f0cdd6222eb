package types

import "time"

// RuleError is a single finding within a file's RuleFailure.
type RuleError struct {
	RuleFailure string         `json:"ruleFailure"`
	Level       Severity       `json:"level"`
	Details     map[string]any `json:"details,omitempty"`
}

// RuleFailure aggregates all findings produced for one file.
type RuleFailure struct {
	FilePath string      `json:"filePath"`
	Errors   []RuleError `json:"errors"`
}

// FactMetric is the per-fact execution summary recorded by the Fact
// Runtime: count, cumulative wall time (seconds, 4-decimal fixed), the
// longest single execution, and the derived average.
type FactMetric struct {
	Count           int     `json:"count"`
	CumulativeSecs  float64 `json:"cumulativeSeconds"`
	LongestSecs     float64 `json:"longestSeconds"`
	AverageSecs     float64 `json:"averageSeconds"`
}

// MemoryUsage is a coarse process memory snapshot taken at result assembly
// time.
type MemoryUsage struct {
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	HeapSysBytes   uint64 `json:"heapSysBytes"`
	SysBytes       uint64 `json:"sysBytes"`
}

// ExecutionResult is the aggregate document produced by one analyzer run.
type ExecutionResult struct {
	Archetype       string                `json:"archetype"`
	RepoPath        string                `json:"repoPath"`
	RepoURL         string                `json:"repoUrl"`
	XFIVersion      string                `json:"xfiVersion"`
	FileCount       int                   `json:"fileCount"`
	TotalIssues     int                   `json:"totalIssues"`
	WarningCount    int                   `json:"warningCount"`
	ErrorCount      int                   `json:"errorCount"`
	FatalityCount   int                   `json:"fatalityCount"`
	ExemptCount     int                   `json:"exemptCount"`
	IssueDetails    []RuleFailure         `json:"issueDetails"`
	DurationSeconds float64               `json:"durationSeconds"`
	StartTime       time.Time             `json:"startTime"`
	FinishTime      time.Time             `json:"finishTime"`
	MemoryUsage     MemoryUsage           `json:"memoryUsage"`
	FactMetrics     map[string]FactMetric `json:"factMetrics"`
	Options         map[string]any        `json:"options,omitempty"`
	TelemetryData   map[string]any        `json:"telemetryData,omitempty"`
	RepoXFIConfig   any                   `json:"repoXFIConfig,omitempty"`
	Cancelled       bool                  `json:"cancelled,omitempty"`
}

// Tally recomputes the four severity counters and TotalIssues from
// IssueDetails, keeping the invariant
// totalIssues == warningCount + errorCount + fatalityCount + exemptCount.
func (r *ExecutionResult) Tally() {
	r.WarningCount, r.ErrorCount, r.FatalityCount, r.ExemptCount = 0, 0, 0, 0
	for _, failure := range r.IssueDetails {
		for _, e := range failure.Errors {
			switch e.Level {
			case Warning:
				r.WarningCount++
			case Error:
				r.ErrorCount++
			case Fatality:
				r.FatalityCount++
			case Exempt:
				r.ExemptCount++
			}
		}
	}
	r.TotalIssues = r.WarningCount + r.ErrorCount + r.FatalityCount + r.ExemptCount
}

// ResultDocument wraps ExecutionResult in the "XFI_RESULT" envelope the
// external result document (spec.md §6) requires.
type ResultDocument struct {
	XFIResult ExecutionResult `json:"XFI_RESULT"`
}
