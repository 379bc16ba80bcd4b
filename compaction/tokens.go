package compaction

// Image token estimates. A full-screen device screenshot is scaled to
// roughly 1.15 megapixels, which costs about 1600 tokens; the 1x1
// placeholder costs next to nothing.
const (
	ImageTokenEstimate       = 1600
	PlaceholderTokenEstimate = 4
)

// ApproximateTokens estimates token count from character count.
// Uses the approximation of ~4 characters per token for English text.
func ApproximateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Use ~4 characters per token with a minimum of 1 token
	tokens := (len(text) + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
