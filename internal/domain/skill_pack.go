package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultContentVersion is the semantic version assigned to newly
// published skill-pack content.
const DefaultContentVersion = "1.0.0"

// Common validation errors for SkillPackContent
var (
	ErrEmptySkillPackID      = errors.New("skill pack ID cannot be empty")
	ErrEmptySkillPackContent = errors.New("skill pack content cannot be empty")
)

// SkillPackContent is the immutable-per-version content blob attached to a
// published skill pack. The content hash is a sha256 digest over the
// serialized content and lets consumers verify integrity without comparing
// full payloads.
type SkillPackContent struct {
	SkillPackID uuid.UUID       `json:"skill_pack_id"`
	Content     json.RawMessage `json:"content"`
	ContentHash string          `json:"content_hash"`
	Version     string          `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewSkillPackContent creates content for the given skill pack, computing
// the integrity hash over the serialized content. Returns an error if
// validation fails.
func NewSkillPackContent(skillPackID uuid.UUID, content json.RawMessage) (*SkillPackContent, error) {
	now := time.Now().UTC()
	spc := &SkillPackContent{
		SkillPackID: skillPackID,
		Content:     content,
		ContentHash: HashContent(content),
		Version:     DefaultContentVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := spc.Validate(); err != nil {
		return nil, err
	}

	return spc, nil
}

// Validate checks if the SkillPackContent has valid data.
func (c *SkillPackContent) Validate() error {
	if c.SkillPackID == uuid.Nil {
		return ErrEmptySkillPackID
	}

	if len(c.Content) == 0 {
		return ErrEmptySkillPackContent
	}

	return nil
}

// HashContent computes the hex-encoded sha256 digest of the serialized
// content blob.
func HashContent(content json.RawMessage) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
