// Package report writes the run's result document to disk: the JSON
// result, a markdown summary, timestamped report files, a rolling
// "latest" mirror, and retention pruning — the persistence half of
// the Analyzer Orchestrator's final step (C7).
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/archkit/archkit/internal/xerrors"
	"github.com/archkit/archkit/pkg/types"
)

// defaultRetention is how many timestamped reports of each kind
// (.json, .md) are kept per output directory.
const defaultRetention = 10

// mirrorBaseName is the fixed filename always overwritten with the
// latest run's result, alongside the timestamped history.
const mirrorBaseName = "XFI_RESULT"

// Writer persists ExecutionResult documents under outputDir.
type Writer struct {
	fs        afero.Fs
	outputDir string
	retention int
}

// New builds a Writer. outputDir is conventionally ".xfiResults" at the
// repo root.
func New(fs afero.Fs, outputDir string) *Writer {
	return &Writer{fs: fs, outputDir: outputDir, retention: defaultRetention}
}

// Write renders doc to both JSON and markdown, as a timestamped report
// and as the rolling XFI_RESULT mirror, prunes old reports beyond the
// retention window, and appends the output directory to the repo's
// .gitignore if it isn't already covered.
func (w *Writer) Write(doc types.ResultDocument, at time.Time, repoRoot string) error {
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return xerrors.Wrap(err, xerrors.ReportWriteFailed, "creating report output directory")
	}

	jsonBody, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return xerrors.Wrap(err, xerrors.ReportWriteFailed, "encoding result document")
	}
	mdBody := []byte(renderMarkdown(doc))

	base := fmt.Sprintf("xfi-report-%s-%d", at.Format("2006-01-02"), at.UnixMilli())
	if err := w.writeAll(base, jsonBody, mdBody); err != nil {
		return err
	}
	if err := w.writeAll(mirrorBaseName, jsonBody, mdBody); err != nil {
		return err
	}

	w.prune("xfi-report-*.json")
	w.prune("xfi-report-*.md")

	if repoRoot != "" {
		if err := w.ensureGitignore(repoRoot); err != nil {
			return xerrors.Wrap(err, xerrors.ReportWriteFailed, "updating .gitignore")
		}
	}
	return nil
}

func (w *Writer) writeAll(base string, jsonBody, mdBody []byte) error {
	jsonPath := filepath.Join(w.outputDir, base+".json")
	if err := afero.WriteFile(w.fs, jsonPath, jsonBody, 0o644); err != nil {
		return xerrors.Wrap(err, xerrors.ReportWriteFailed, fmt.Sprintf("writing %s", jsonPath))
	}
	mdPath := filepath.Join(w.outputDir, base+".md")
	if err := afero.WriteFile(w.fs, mdPath, mdBody, 0o644); err != nil {
		return xerrors.Wrap(err, xerrors.ReportWriteFailed, fmt.Sprintf("writing %s", mdPath))
	}
	return nil
}

// prune keeps only the newest w.retention files matching pattern
// (lexical filename sort, which sorts newest-last since names carry a
// YYYY-MM-DD date followed by a 13-digit epoch millisecond suffix).
func (w *Writer) prune(pattern string) {
	matches, err := afero.Glob(w.fs, filepath.Join(w.outputDir, pattern))
	if err != nil || len(matches) <= w.retention {
		return
	}
	sort.Strings(matches)
	stale := matches[:len(matches)-w.retention]
	for _, path := range stale {
		_ = w.fs.Remove(path)
	}
}

// ensureGitignore appends "<outputDir>/" to repoRoot/.gitignore if no
// existing line already covers it, writing outputDir relative to repoRoot
// when it can be expressed that way.
func (w *Writer) ensureGitignore(repoRoot string) error {
	dir := w.outputDir
	if rel, err := filepath.Rel(repoRoot, dir); err == nil {
		dir = rel
	}
	entry := strings.TrimSuffix(filepath.ToSlash(dir), "/") + "/"
	path := filepath.Join(repoRoot, ".gitignore")

	existing, err := afero.ReadFile(w.fs, path)
	if err != nil {
		existing = nil
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == entry || strings.TrimSpace(line) == strings.TrimSuffix(entry, "/") {
			return nil
		}
	}

	updated := string(existing)
	if len(updated) > 0 && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += entry + "\n"
	return afero.WriteFile(w.fs, path, []byte(updated), 0o644)
}

func renderMarkdown(doc types.ResultDocument) string {
	r := doc.XFIResult
	var b strings.Builder
	fmt.Fprintf(&b, "# archkit report: %s\n\n", r.Archetype)
	fmt.Fprintf(&b, "- Repo: %s\n", r.RepoPath)
	fmt.Fprintf(&b, "- Files analyzed: %d\n", r.FileCount)
	fmt.Fprintf(&b, "- Total issues: %d (warnings: %d, errors: %d, fatalities: %d, exempt: %d)\n\n",
		r.TotalIssues, r.WarningCount, r.ErrorCount, r.FatalityCount, r.ExemptCount)

	for _, failure := range r.IssueDetails {
		if len(failure.Errors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", failure.FilePath)
		for _, e := range failure.Errors {
			fmt.Fprintf(&b, "- **%s** (%s): %v\n", e.RuleFailure, e.Level, e.Details)
		}
		b.WriteString("\n")
	}
	return b.String()
}
