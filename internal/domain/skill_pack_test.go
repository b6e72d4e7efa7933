package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewSkillPackContent(t *testing.T) {
	t.Parallel() // Enable parallel execution
	skillPackID := uuid.New()
	content := json.RawMessage(`{"prompts":["x"]}`)

	spc, err := NewSkillPackContent(skillPackID, content)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if spc.SkillPackID != skillPackID {
		t.Errorf("Expected skill pack ID %s, got %s", skillPackID, spc.SkillPackID)
	}

	if spc.Version != DefaultContentVersion {
		t.Errorf("Expected version %s, got %s", DefaultContentVersion, spc.Version)
	}

	if spc.ContentHash != HashContent(content) {
		t.Error("Expected content hash to match digest of serialized content")
	}

	_, err = NewSkillPackContent(uuid.Nil, content)
	if !errors.Is(err, ErrEmptySkillPackID) {
		t.Errorf("Expected error %v, got %v", ErrEmptySkillPackID, err)
	}

	_, err = NewSkillPackContent(skillPackID, nil)
	if !errors.Is(err, ErrEmptySkillPackContent) {
		t.Errorf("Expected error %v, got %v", ErrEmptySkillPackContent, err)
	}
}

func TestHashContentIsDeterministic(t *testing.T) {
	t.Parallel() // Enable parallel execution
	content := json.RawMessage(`{"prompts":["x","y"]}`)

	if HashContent(content) != HashContent(content) {
		t.Error("Expected identical content to produce identical hashes")
	}

	other := json.RawMessage(`{"prompts":["z"]}`)
	if HashContent(content) == HashContent(other) {
		t.Error("Expected different content to produce different hashes")
	}
}
