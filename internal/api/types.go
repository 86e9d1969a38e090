package api

// GenerateContentRequest is the body of a generateContent call
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is one turn of a generateContent conversation
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one piece of a content turn
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig holds sampling and output-format settings
type GenerationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"` // "application/json" asks for bare JSON output
	Temperature      *float64 `json:"temperature,omitempty"`
}

// GenerateContentResponse is the envelope returned by generateContent
type GenerateContentResponse struct {
	Candidates    []Candidate    `json:"candidates"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string         `json:"modelVersion,omitempty"`
}

// Candidate is one generated completion
type Candidate struct {
	Content      *Content `json:"content"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// UsageMetadata reports token counts for a request
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
