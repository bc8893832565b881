package enrichment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/magiccrafter/engineering-metrics-data-collector/internal/gitlab"
	"github.com/magiccrafter/engineering-metrics-data-collector/internal/model"
)

const systemPrompt = `You review merge requests for an engineering metrics report. From the title, description and code changes you are given, produce a category, a conventional commit title and a short summary.

Category is exactly one of:
- Feature: new functionality or business logic
- Bugfix: corrects wrong behavior or errors
- Refactor: restructures code without changing behavior
- Platform: CI/CD, Docker, build scripts or infrastructure as code
- Chore: dependency updates, documentation or small maintenance

Title follows "type(scope): description". Feature maps to feat, Bugfix to fix, Refactor to refactor, Platform to chore or ci, Chore to chore, docs or style. The scope is a short noun for the affected area (api, auth, ui). The description is imperative ("add", not "added"), has no trailing period, and the whole title is at most 100 characters.

Summary is two or three sentences on what changed and why.

Answer with a single JSON object and nothing else, no markdown:
{"category": "...", "title": "...", "summary": "..."}`

// buildUserPrompt renders the merge request and as much of its diff as fits in maxChars.
func buildUserPrompt(mr model.MergeRequest, diffs []gitlab.FileDiff, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PR Title: %s\n", mr.Title)
	description := ""
	if mr.Description != nil {
		description = *mr.Description
	}
	fmt.Fprintf(&b, "PR Description: %s\n", description)
	b.WriteString("PR Changes:\n")
	b.WriteString(diffContext(diffs, maxChars))
	return b.String()
}

// diffContext concatenates file diffs up to maxChars bytes. The file that crosses
// the limit is cut, later files are dropped.
func diffContext(diffs []gitlab.FileDiff, maxChars int) string {
	var b strings.Builder
	for _, d := range diffs {
		entry := fmt.Sprintf("File: %s\nDiff:\n%s\n\n", d.NewPath, d.Diff)
		if b.Len()+len(entry) > maxChars {
			b.WriteString(cut(entry, maxChars-b.Len()))
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

// cut returns at most n bytes of s without splitting a rune.
func cut(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
