package llm

import (
	"fmt"
	"strings"
)

// gateSystemPrompt frames the model's role for reference validation.
const gateSystemPrompt = "You are an extremely helpful assistant for checking references."

// summarySystemPrompt frames the model's role for methods+tables reports.
const summarySystemPrompt = "You are a helpful assistant that summarizes academic methods and table findings."

// buildGatePrompt assembles the user prompt for one validation batch. The
// batch travels as pretty-printed JSON; the model is told to mark each
// entry valid or not and to reply with a bare JSON array, no code fences.
// Fences show up anyway often enough that the gate strips them on receipt.
func buildGatePrompt(batchJSON string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert in parsing academic references. ")
	sb.WriteString("Return only JSON (no triple backticks or code fences). ")
	sb.WriteString("Below is a list of references in JSON form. Each normally has keys: ")
	sb.WriteString("'first_name', 'last_name', 'title', 'year', and 'journal'. ")
	sb.WriteString("If the reference has a title that fits the usual of an academic paper, OR it has a famous journal ")
	sb.WriteString("name, set 'valid': true. (this means keep the references that satisfy either of those two conditions)")
	sb.WriteString("If it's clearly gibberish, set 'valid': false. ")
	sb.WriteString("Return only the JSON array, nothing else.\n\n")
	sb.WriteString("References:\n")
	sb.WriteString(batchJSON)

	return sb.String()
}

// buildSummaryPrompt assembles the user prompt for the one-shot
// methods+tables report. Both inputs are embedded verbatim.
func buildSummaryPrompt(methodsText, tablesJSON string) string {
	return fmt.Sprintf(`You are an expert at reading research methods and analyzing table data to extract main findings.

Below is the Methods section of a research paper, followed by a JSON representation of tables from that paper.

=== METHODS TEXT ===
%s

=== TABLES (JSON) ===
%s

Please produce a summary that addresses:
1) The main research methods used in the paper.
2) The key takeaways or findings from the data of each table.
3) Present the information in a medium-length, coherent report without code fences or raw JSON.`, methodsText, tablesJSON)
}
