package store

import (
	"sort"
	"strings"
	"time"

	"github.com/akolanti/GoRAG/internal/domain/ragModel"
	"github.com/google/uuid"
)

func withAssetDefaults(asset ragModel.Asset) ragModel.Asset {
	if asset.Id == "" {
		asset.Id = uuid.NewString()
	}
	if asset.PushedAt.IsZero() {
		asset.PushedAt = time.Now().UTC()
	}
	return asset
}

func validateChunk(c ragModel.Chunk) error {
	switch {
	case c.Id == "" || c.AssetId == "":
		return ragModel.NewError(ragModel.ErrPersistence, "insert chunks", "chunk is missing its id or asset id")
	case c.ChunkOrder < 1:
		return ragModel.NewError(ragModel.ErrPersistence, "insert chunks", "chunk order %d must start at 1", c.ChunkOrder)
	case strings.TrimSpace(c.ChunkText) == "":
		return ragModel.NewError(ragModel.ErrPersistence, "insert chunks", "chunk %s has no text", c.Id)
	}
	return ragModel.ValidateProjectId(c.ProjectId)
}

type assetRef struct {
	projectId string
	assetId   string
}

// batchAssets lists the distinct assets of a chunk batch in first-seen order.
func batchAssets(chunks []ragModel.Chunk) []assetRef {
	seen := make(map[assetRef]bool)
	var refs []assetRef
	for _, c := range chunks {
		ref := assetRef{projectId: c.ProjectId, assetId: c.AssetId}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

func alreadyProcessed(assetId string, existing int) error {
	return ragModel.NewError(ragModel.ErrAssetAlreadyProcessed, "insert chunks",
		"asset %s already has %d chunks", assetId, existing)
}

func sortAssets(assets []ragModel.Asset) {
	sort.Slice(assets, func(i, j int) bool {
		if !assets[i].PushedAt.Equal(assets[j].PushedAt) {
			return assets[i].PushedAt.Before(assets[j].PushedAt)
		}
		return assets[i].AssetName < assets[j].AssetName
	})
}
