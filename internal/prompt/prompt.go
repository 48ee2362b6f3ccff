// Package prompt renders the instructions sent to the content source.
// Rendering is pure: the same task always produces the same prompt.
package prompt

import (
	"fmt"
	"strings"

	"recontext/internal/domain"
)

const generationTemplate = `You are an expert simulation designer. Your task is to adapt an existing simulation (given as JSON) to a new scenario while preserving its structure and links.

Here is the current simulation scenario:
OLD SCENARIO: %s

Simulation JSON (do not modify the structure or fields):
SIMULATION: %s

Your objective:
- Re-contextualize all narrative, descriptions, and scenario-dependent content so that it aligns with the NEW SCENARIO:
NEW SCENARIO: %s

Constraints:
1. Do not modify the JSON structure, keys, or data types.
2. Locked fields (everything not scenario-dependent) must remain identical.
3. Only adapt scenario-relevant content such as names, roles, narrative, instructions, examples, and context.
4. Ensure global coherence: the adapted simulation should read naturally, reflect the new scenario consistently, and contain no residual references to the old scenario.
5. Preserve formatting, arrays, objects, and any schema constraints.

Deliverable:
- Output ONLY the valid JSON object. Do not include any markdown formatting, code blocks, explanations, or additional text.
- Do not wrap the JSON in ` + "```json or ```" + ` markers.
- Return only the raw JSON that can be directly parsed.`

const correctionFooter = `You must correct all issues identified by the validator and produce a fully compliant JSON object.
Carefully review the constraints above, adjust any incorrect fields or structural inconsistencies, and ensure that:

1. Every key strictly matches the source document.
2. All value types match the source document.
3. No additional or missing fields exist.
4. Arrays and nested objects follow the exact structure of the source document.
5. Locked fields are byte-for-byte identical to the source document.
6. The JSON remains syntactically valid and properly formatted.

After making the necessary corrections, re-generate the complete JSON output.
Provide only the corrected JSON in your response.`

// Generation renders the full prompt for a task. When the task carries a
// correction context, the corrective addendum is appended after the base
// instructions.
func Generation(task domain.GenerationTask) string {
	var b strings.Builder
	fmt.Fprintf(&b, generationTemplate, task.CurrentScenario, task.SourceJSON, task.TargetScenario)
	if task.Correction != nil {
		b.WriteString("\n\n")
		b.WriteString(Correction(task.Correction))
	}
	return b.String()
}

// Correction renders the corrective addendum for a rejected attempt: the
// validator findings, the output that produced them, and the repair
// instructions.
func Correction(c *domain.CorrectionContext) string {
	var b strings.Builder
	b.WriteString("The previous output did not satisfy the required JSON structure.\n")
	b.WriteString("Validation failed with the following findings:\n\n")
	for _, e := range c.Errors {
		fmt.Fprintf(&b, "- %s\n", e)
	}
	fmt.Fprintf(&b, "\nPrevious output:\n%s\n\n", c.PreviousOutput)
	b.WriteString(correctionFooter)
	return b.String()
}
