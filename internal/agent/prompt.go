package agent

import "strings"

// completionNudge is appended as a user turn when the assistant stops
// calling tools without finishing.
const completionNudge = "Is the task complete? If more operations are needed, continue by calling tools; otherwise call the finish tool with a summary of the work."

// finalSummaryPrompt requests the closing report after an implicit completion.
const finalSummaryPrompt = "The task is complete. Provide a summary of what was done and the result."

// noSummaryMessage stands in when the model finishes without a summary.
const noSummaryMessage = "Task is complete, but no summary was provided."

// maxIterationsMessage is the result text when the iteration budget runs out.
const maxIterationsMessage = "Reached the maximum number of iterations. The task may be incomplete."

// buildSystemPrompt seeds the conversation with the agent's role, its working
// procedure, and the optional repository description.
func buildSystemPrompt(repoDescription string) string {
	base := strings.TrimSpace(`
You are an autonomous coding agent. You solve the given task by reading,
editing, and creating code on the filesystem.

Work through the task in these steps:
1. Analyze the task and plan the operations it needs.
2. Read the files required to understand the existing code.
3. Form a concrete implementation plan.
4. Write and edit code, running checks where appropriate.
5. Verify the result and fix anything that is still wrong.

Use the filesystem tools to make progress. Every path must stay inside the
allowed directories. When the task is done, call the finish tool with a
summary of the changes.`)

	if desc := strings.TrimSpace(repoDescription); desc != "" {
		return base + "\n\nRepository description:\n" + desc
	}
	return base
}

// containsCompletionMarker reports whether the content reads as a completion
// claim. Only the legacy implicit-finish heuristic consults it.
func containsCompletionMarker(content string) bool {
	c := strings.ToLower(content)
	return strings.Contains(c, "complete") || strings.Contains(c, "success")
}
