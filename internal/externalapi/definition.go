// Package externalapi loads the shared-secret definitions that gate the
// external HTTP endpoints and carry each caller's kick scope.
package externalapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	yaml "go.yaml.in/yaml/v3"
)

// Definition types understood by the HTTP API.
const (
	TypeKick = "kick"
	TypeRisk = "risk"
)

// Definition is one configured external caller.
type Definition struct {
	ID      string         `yaml:"id"`
	Name    string         `yaml:"name"`
	Type    string         `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	APIKey  string         `yaml:"api_key"`
	Kick    KickDefinition `yaml:"kick"`
}

// KickDefinition is the scope a kick caller is allowed to act on.
type KickDefinition struct {
	// BotID 0 means every active bot and forces all chats.
	BotID int64 `yaml:"bot_id"`
	// UseAllChats defaults to true when omitted.
	UseAllChats         *bool   `yaml:"use_all_chats"`
	ChatIDs             []int64 `yaml:"chat_ids"`
	PermanentBanDefault bool    `yaml:"permanent_ban_default"`
	// RejoinAccountID enables the rejoin recovery path when positive.
	RejoinAccountID int64 `yaml:"rejoin_account_id"`
}

// AllChats reports the effective use_all_chats flag.
func (k KickDefinition) AllChats() bool {
	if k.BotID == 0 {
		return true
	}
	if k.UseAllChats == nil {
		return true
	}
	return *k.UseAllChats
}

// IsType compares the definition type case-insensitively.
func (d Definition) IsType(apiType string) bool {
	return strings.EqualFold(strings.TrimSpace(d.Type), strings.TrimSpace(apiType))
}

type fileDocument struct {
	APIs []Definition `yaml:"apis"`
}

// Parse decodes a definition file. Unknown keys are rejected and definitions
// without an id are assigned one.
func Parse(data []byte) ([]Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Definition{}, nil
	}

	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []Definition{}, nil
		}
		return nil, fmt.Errorf("decode definitions: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.APIs))
	defs := make([]Definition, 0, len(doc.APIs))
	for i, def := range doc.APIs {
		def.ID = strings.TrimSpace(def.ID)
		def.Name = strings.TrimSpace(def.Name)
		def.Type = strings.ToLower(strings.TrimSpace(def.Type))
		if def.ID == "" {
			def.ID = uuid.NewString()
		}
		if def.Type == "" {
			return nil, fmt.Errorf("definition %d (%s): type is required", i, def.ID)
		}
		if def.Kick.BotID < 0 {
			return nil, fmt.Errorf("definition %s: kick.bot_id must not be negative", def.ID)
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("definition %s: duplicate id", def.ID)
		}
		seen[def.ID] = struct{}{}
		defs = append(defs, def)
	}

	return defs, nil
}

// Marshal renders definitions in the file format read by Parse.
func Marshal(defs []Definition) ([]byte, error) {
	out, err := yaml.Marshal(fileDocument{APIs: defs})
	if err != nil {
		return nil, fmt.Errorf("encode definitions: %w", err)
	}
	return out, nil
}
