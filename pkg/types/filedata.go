package types

// RepoGlobalCheck is the synthetic pseudo-file name that carries
// whole-repository rules. It is always the last entry processed in a run.
const RepoGlobalCheck = "REPO_GLOBAL_CHECK"

// FileData is the unit of work the Rule Evaluator processes: one real file,
// or the single synthetic RepoGlobalCheck entry.
type FileData struct {
	FileName    string
	FilePath    string
	FileContent string
}

// IsGlobalCheck reports whether f is the synthetic REPO_GLOBAL_CHECK carrier.
func (f FileData) IsGlobalCheck() bool {
	return f.FileName == RepoGlobalCheck && f.FilePath == RepoGlobalCheck
}

// GlobalCheckFile constructs the synthetic pseudo-file entry.
func GlobalCheckFile() FileData {
	return FileData{FileName: RepoGlobalCheck, FilePath: RepoGlobalCheck}
}
