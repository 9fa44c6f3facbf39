package ollama

// buildHydePrompt asks the model for a short passage written the way an
// authoritative answer would read, which then gets embedded and used for
// similarity search in place of the question itself.
func buildHydePrompt(question string) string {
	const maxQuestion = 2000
	if len(question) > maxQuestion {
		question = question[:maxQuestion]
	}

	return `Scrivi un breve paragrafo (massimo 120 parole) che risponda alla domanda
come farebbe un documento di prassi tributaria: tono tecnico, riferimenti
normativi plausibili, nessuna premessa e nessuna formula di cortesia.

Domanda:
` + question
}
