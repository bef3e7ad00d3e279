package splitter

import (
	"strings"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
)

const (
	MetaStartOffset  = "start_offset"
	MetaEndOffset    = "end_offset"
	MetaSourceLength = "source_length"
	MetaOverlapSize  = "overlap_size"
)

// Split cuts text into windows of chunkSize runes that advance by chunkSize-overlapSize.
// The last window ends at the end of the text and may be shorter, never empty.
// Empty text yields no candidates and no error.
func Split(text string, chunkSize, overlapSize int) ([]ragModel.ChunkCandidate, error) {
	if err := ragModel.ValidateChunkParameters(chunkSize, overlapSize); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := chunkSize - overlapSize
	candidates := make([]ragModel.ChunkCandidate, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := min(start+chunkSize, len(runes))
		overlap := overlapSize
		if start == 0 {
			overlap = 0
		}
		candidates = append(candidates, ragModel.ChunkCandidate{
			Text: string(runes[start:end]),
			Metadata: map[string]any{
				MetaStartOffset:  start,
				MetaEndOffset:    end,
				MetaSourceLength: len(runes),
				MetaOverlapSize:  overlap,
			},
		})
		if end == len(runes) {
			break
		}
	}
	return candidates, nil
}

// Reconstruct joins candidates back into the source text by dropping the leading
// overlap runes of every window after the first.
func Reconstruct(candidates []ragModel.ChunkCandidate, overlapSize int) string {
	var sb strings.Builder
	for i, c := range candidates {
		if i == 0 {
			sb.WriteString(c.Text)
			continue
		}
		runes := []rune(c.Text)
		if overlapSize < len(runes) {
			sb.WriteString(string(runes[overlapSize:]))
		}
	}
	return sb.String()
}
