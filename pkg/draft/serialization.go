package draft

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). The metadata map is
// JSON-encoded into a single hash field. This keeps simple fields queryable
// individually while allowing arbitrary caller metadata.

// DraftToHash converts a Draft struct to a Redis hash format.
// The metadata map is JSON-encoded.
func DraftToHash(d *Draft) (map[string]interface{}, error) {
	metadataJSON, err := json.Marshal(d.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	hash := map[string]interface{}{
		"id":               d.ID,
		"owner":            d.Owner,
		"module":           d.Module,
		"route":            d.Route,
		"entity_id":        d.EntityID,
		"title":            d.Title,
		"step":             d.Step,
		"form_data":        d.FormData,
		"metadata":         string(metadataJSON),
		"version":          d.Version,
		"status":           string(d.Status),
		"created_at_ms":    d.CreatedAtMs,
		"last_saved_at_ms": d.LastSavedAtMs,
	}

	return hash, nil
}

// HashToDraft converts a Redis hash to a Draft struct.
// JSON fields are decoded back to Go types.
func HashToDraft(hash map[string]string) (*Draft, error) {
	version, err := strconv.ParseInt(hash["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}

	var metadata map[string]string
	if metadataJSON := hash["metadata"]; metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	lastSavedAtMs, _ := strconv.ParseInt(hash["last_saved_at_ms"], 10, 64)

	draft := &Draft{
		ID:            hash["id"],
		Owner:         hash["owner"],
		Module:        hash["module"],
		Route:         hash["route"],
		EntityID:      hash["entity_id"],
		Title:         hash["title"],
		Step:          hash["step"],
		FormData:      hash["form_data"],
		Metadata:      metadata,
		Version:       version,
		Status:        Status(hash["status"]),
		CreatedAtMs:   createdAtMs,
		LastSavedAtMs: lastSavedAtMs,
	}

	return draft, nil
}
