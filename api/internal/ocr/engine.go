package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Engine interface {
	Name() string
	GetModel() string
	Extract(ctx context.Context, in Request) (Result, error)
}

// Engines holds the configured providers. Nil fields are not available.
type Engines struct {
	Gemini    Engine
	GeminiSDK Engine
	OpenAI    Engine
	Yandex    Engine

	Default string
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = e.Default
	}
	var eng Engine
	switch name {
	case "", "gemini":
		eng = e.Gemini
	case "gemini-sdk", "genai":
		eng = e.GeminiSDK
	case "gpt", "openai":
		eng = e.OpenAI
	case "yandex":
		eng = e.Yandex
	default:
		return nil, fmt.Errorf("unknown llm_name %q; use one of: %s", llmName, strings.Join(e.Names(), ", "))
	}
	if eng == nil {
		return nil, fmt.Errorf("engine %q is not configured", name)
	}
	return eng, nil
}

// Names lists the engines that are configured.
func (e *Engines) Names() []string {
	var out []string
	for name, eng := range map[string]Engine{
		"gemini":     e.Gemini,
		"gemini-sdk": e.GeminiSDK,
		"gpt":        e.OpenAI,
		"yandex":     e.Yandex,
	} {
		if eng != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Manager keeps per-chat engine and prompt choices on top of Engines.
type Manager struct {
	engs    *Engines
	m       sync.Map // chatID -> Engine
	prompts sync.Map // chatID -> string
}

func NewManager(engs *Engines) *Manager {
	return &Manager{engs: engs}
}

// Get returns the chat's engine, falling back to the default one.
func (m *Manager) Get(chatID int64) (Engine, error) {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine), nil
	}
	return m.engs.GetEngine("")
}

func (m *Manager) Set(chatID int64, llmName string) (Engine, error) {
	eng, err := m.engs.GetEngine(llmName)
	if err != nil {
		return nil, err
	}
	m.m.Store(chatID, eng)
	return eng, nil
}

// Prompt returns the chat's prompt or "" when none was set.
func (m *Manager) Prompt(chatID int64) string {
	if v, ok := m.prompts.Load(chatID); ok {
		return v.(string)
	}
	return ""
}

// SetPrompt stores a prompt for the chat; an empty prompt resets it.
func (m *Manager) SetPrompt(chatID int64, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		m.prompts.Delete(chatID)
		return
	}
	m.prompts.Store(chatID, prompt)
}

func (m *Manager) Names() []string { return m.engs.Names() }
