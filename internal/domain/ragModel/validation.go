package ragModel

import (
	"strings"
	"unicode"
)

func ValidateProjectId(projectId string) error {
	if projectId == "" {
		return NewError(ErrInvalidProjectID, "validate", "project id is empty")
	}
	for _, r := range projectId {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return NewError(ErrInvalidProjectID, "validate", "project id %q must be alphanumeric", projectId)
		}
	}
	return nil
}

func ValidateChunkParameters(chunkSize, overlapSize int) error {
	if chunkSize <= 0 || overlapSize < 0 || chunkSize <= overlapSize {
		return NewError(ErrInvalidChunkParameters, "validate",
			"chunk size %d must be positive and greater than overlap %d", chunkSize, overlapSize)
	}
	return nil
}

func ValidateAsset(asset Asset) error {
	if err := ValidateProjectId(asset.ProjectId); err != nil {
		return err
	}
	if strings.TrimSpace(asset.AssetName) == "" {
		return NewError(ErrInvalidAsset, "validate", "asset name is empty")
	}
	if asset.AssetSize < 0 {
		return NewError(ErrInvalidAsset, "validate", "asset size %d is negative", asset.AssetSize)
	}
	return nil
}
