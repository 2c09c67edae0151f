package analyzer

import "strings"

// BuildPrompt composes the instruction for the vision model. The OCR text is
// embedded verbatim so the model can cross-check what it sees against what
// the OCR engine read, and the requested JSON shape gives the parser a fixed
// target to locate.
func BuildPrompt(ocrText string) string {
	parts := []string{
		"You are a financial document parser. The attached image is a receipt, invoice, or bill.",
		"Describe the transaction it records as STRICT JSON with exactly these fields:",
		`- "type": one of "expense", "income", "transfer"`,
		`- "amount": the grand total as a number (e.g. 25.50)`,
		`- "vendor": the merchant or counterparty name`,
		`- "date": the transaction date as ISO-8601 "YYYY-MM-DD"`,
		`- "category": a short spending category label, or omit if unclear`,
		`- "description": one concise line describing the purchase`,
		`- "confidence": your confidence in this extraction, a number in [0,1]`,
		"",
		"Rules:",
		"- Output ONLY the JSON object. No prose, no Markdown, no code fences.",
		"- Use the image as the primary source; the OCR text below is a noisy aid.",
		"- Never output null. If a field is not present, omit it.",
		"",
		"OCR text:",
		"---",
		ocrText,
		"---",
	}
	return strings.Join(parts, "\n")
}
