package vectorstore

import "strings"

// Chunk splits text into overlapping windows of roughly size runes, breaking
// on whitespace where possible so words stay intact. overlap runes of each
// chunk repeat at the start of the next one.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = 2000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		// Back off to the nearest whitespace so words stay whole
		cut := end
		for cut > start+size/2 && !isSpace(runes[cut]) {
			cut--
		}
		if cut == start+size/2 {
			cut = end
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:cut])))
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
