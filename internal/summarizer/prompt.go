package summarizer

import (
	"fmt"
	"strings"

	"github.com/simonyos/rulefy/internal/chunker"
	"github.com/simonyos/rulefy/internal/llm"
)

// Request is the fixed input of one summarization run.
type Request struct {
	// Digest is the full repository text to be chunked.
	Digest string

	// Guidelines is the template document describing the expected output.
	Guidelines string

	// Description and RuleType are optional hints from the caller.
	Description string
	RuleType    string

	Dialect Dialect
}

// section renders one part of a prompt; empty sections are dropped.
type section func(req Request, chunk chunker.Chunk) string

const sectionSeparator = "\n\n====\n\n"

func build(req Request, chunk chunker.Chunk, sections ...section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if text := s(req, chunk); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, sectionSeparator)
}

// CreatePrompt builds the messages for the first chunk.
func CreatePrompt(req Request, chunk chunker.Chunk) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: req.Dialect.persona()},
		{Role: llm.RoleUser, Content: build(req, chunk,
			createTask,
			chunkSection,
			guidelinesSection,
			hintsSection,
			createInstructions,
		)},
	}
}

// UpdatePrompt builds the messages for every chunk after the first. The
// current draft is embedded verbatim.
func UpdatePrompt(req Request, chunk chunker.Chunk, draft string) []llm.Message {
	draftSection := func(Request, chunker.Chunk) string {
		return "CURRENT DRAFT\n\n" + draft
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: req.Dialect.persona()},
		{Role: llm.RoleUser, Content: build(req, chunk,
			updateTask,
			draftSection,
			chunkSection,
			guidelinesSection,
			hintsSection,
			updateInstructions,
		)},
	}
}

func position(chunk chunker.Chunk) string {
	if chunk.TotalChunks <= 1 {
		return "the codebase"
	}
	return fmt.Sprintf("part %d of %d of the codebase", chunk.Index+1, chunk.TotalChunks)
}

func createTask(req Request, chunk chunker.Chunk) string {
	return fmt.Sprintf(`TASK

Read %s below, read the guidelines, and write a complete %s for this project.`,
		position(chunk), req.Dialect.document())
}

func updateTask(req Request, chunk chunker.Chunk) string {
	return fmt.Sprintf(`TASK

You are refining an existing %s. A draft built from the earlier parts of the codebase is shown below, followed by %s. Update the draft with what this part reveals.`,
		req.Dialect.document(), position(chunk))
}

func chunkSection(_ Request, chunk chunker.Chunk) string {
	return "CODEBASE\n\n" + chunk.Text
}

func guidelinesSection(req Request, _ chunker.Chunk) string {
	if strings.TrimSpace(req.Guidelines) == "" {
		return ""
	}
	return "GUIDELINES\n\n" + req.Guidelines
}

func hintsSection(req Request, _ chunker.Chunk) string {
	var lines []string
	if req.Description != "" {
		lines = append(lines, "- Project description: "+req.Description)
	}
	if req.RuleType != "" {
		lines = append(lines, "- Rule type: "+req.RuleType)
	}
	if len(lines) == 0 {
		return ""
	}
	return "ADDITIONAL CONTEXT\n\n" + strings.Join(lines, "\n")
}

func createInstructions(req Request, _ chunker.Chunk) string {
	tag := req.Dialect.Tag()
	return fmt.Sprintf(`INSTRUCTIONS

1. Analyze the code structure, languages, frameworks, conventions and workflows you can observe.
2. Follow the guidelines for format and coverage.
3. Honor the additional context when it is given.
4. Output the complete document wrapped in <%s> and </%s> tags.`, tag, tag)
}

func updateInstructions(req Request, _ chunker.Chunk) string {
	tag := req.Dialect.Tag()
	return fmt.Sprintf(`INSTRUCTIONS

1. Preserve all existing content of the draft.
2. Add only information that is genuinely new in this part of the codebase.
3. Keep the structure and organization of the draft stable.
4. Output the complete updated document, not a diff, wrapped in <%s> and </%s> tags.`, tag, tag)
}
