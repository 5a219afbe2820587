// Package fingerprint computes the content hash that identifies a playback
// event by its semantic fields. Two submissions with identical fields collide
// on this value no matter which retry token they carry, which is what lets
// the store's uniqueness constraint catch true duplicates.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// payload fixes the field order of the canonical serialization. Changing the
// order or the JSON tags changes every digest, so treat this as frozen.
type payload struct {
	UserID           string `json:"userId"`
	ContentID        string `json:"contentId"`
	Device           string `json:"device"`
	Timestamp        string `json:"timestamp"`
	PlaybackDuration int    `json:"playbackDuration"`
}

// Compute returns the hex SHA-256 digest of the event's semantic fields.
// Deterministic and salt-free. The timestamp is hashed exactly as the client
// submitted it, not normalized, so the same instant written two ways yields
// two distinct events.
func Compute(userID, contentID, device, timestamp string, playbackDuration int) string {
	b, _ := json.Marshal(payload{
		UserID:           userID,
		ContentID:        contentID,
		Device:           device,
		Timestamp:        timestamp,
		PlaybackDuration: playbackDuration,
	})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
