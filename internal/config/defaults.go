package config

// GetDefaultOpeningTemplate returns the default template for the first scene of a story
func GetDefaultOpeningTemplate() string {
	return `You are an interactive storyteller.
Genre: {{.Genre}}.
Task: Write the opening scene (Chapter 1, Scene 1) of a story.
Length: Approximately {{.CharTarget}} characters.
Format: Valid JSON.
Structure:
{
  "title": "A short, creative title for this story",
  "story": "The narrative text...",
  "options": ["Choice A text", "Choice B text"]
}
Make the story engaging, descriptive, and immersive.`
}

// GetDefaultContinuationTemplate returns the default template for every scene after the opening.
// The finale branch asks for a conclusion and no options.
func GetDefaultContinuationTemplate() string {
	return `Continue the {{.Genre}} story.
Current Progress: Chapter {{.Chapter}}, Scene {{.Scene}}.
Previous Context Summary: {{.Context}}...
The user just chose: "{{.Choice}}".

{{if .IsFinale}}Write the GRAND FINALE (Chapter {{.Chapter}}, Scene {{.Scene}}). Wrap up the story based on choices. Length: {{.CharTarget}} chars. Provide NO options, pass an empty array.{{else}}Write the next scene. Length: {{.CharTarget}} chars. Provide 2 distinct choices for the protagonist.{{end}}

Output STRICT JSON:
{
  "story": "The narrative text...",
  "options": {{if .IsFinale}}[]{{else}}["Choice A", "Choice B"]{{end}}
}`
}
