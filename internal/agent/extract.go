package agent

import (
	"regexp"
	"strings"
)

const maxThumbnails = 8

var (
	urlPattern = regexp.MustCompile(`https?://[^\s)\]"']+`)

	// Hosts and extensions that mark a URL in free text as a probable image.
	imageHints = []string{
		"tempfile", "aiquickdraw", "s3.", "amazonaws", "cloudfront",
		".png", ".jpg", ".jpeg", ".webp",
	}
)

// ExtractThumbnails pulls displayable image URLs out of a finished turn.
// Tool outputs are the trusted source: every line that is a URL counts,
// whatever it points at. Only when the tools produced nothing does the
// final reply text get scanned, and those candidates must look like images.
// First occurrence wins on duplicates and the result is capped at eight.
func ExtractThumbnails(toolOutputs []string, finalText string) []string {
	var found []string

	for _, out := range toolOutputs {
		for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
			line = strings.TrimRight(strings.TrimSpace(line), ".,;")
			if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
				found = append(found, line)
			}
		}
	}

	if len(found) == 0 {
		for _, u := range urlPattern.FindAllString(finalText, -1) {
			if looksLikeImage(u) {
				found = append(found, u)
			}
		}
	}

	seen := make(map[string]bool, len(found))
	unique := []string{}
	for _, u := range found {
		if seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
		if len(unique) == maxThumbnails {
			break
		}
	}
	return unique
}

func looksLikeImage(u string) bool {
	for _, hint := range imageHints {
		if strings.Contains(u, hint) {
			return true
		}
	}
	return false
}
