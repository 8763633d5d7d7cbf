package analysis

import "strings"

// fillerPhrases mark turns where the model acknowledged the stream instead
// of analyzing it. Matched by case-insensitive substring.
var fillerPhrases = []string{
	"i'm ready",
	"please provide",
	"waiting for",
	"ready when you are",
	"send the audio",
}

func isFiller(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range fillerPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
