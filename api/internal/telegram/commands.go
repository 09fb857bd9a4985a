package telegram

import (
	"fmt"
	"strings"

	"receipt-ocr/api/internal/ocr"
)

const helpText = `Send a photo (or an image file) of an invoice or receipt and I will reply with the extracted text.

Commands:
/engine - show the current engine
/engine <name> - switch engine (%s)
/prompt - show the current prompt
/prompt <text> - use your own prompt; "/prompt reset" restores the default
/help - this message`

func (r *Router) HandleCommand(chatID int64, cmd, args string) {
	args = strings.TrimSpace(args)
	switch cmd {
	case "start", "help":
		r.send(chatID, fmt.Sprintf(helpText, strings.Join(r.EngManager.Names(), ", ")))
	case "engine":
		r.handleEngineCommand(chatID, args)
	case "prompt":
		r.handlePromptCommand(chatID, args)
	default:
		r.send(chatID, "Unknown command. /help lists the commands.")
	}
}

func (r *Router) handleEngineCommand(chatID int64, args string) {
	if args == "" {
		eng, err := r.EngManager.Get(chatID)
		if err != nil {
			r.send(chatID, "No engine is configured: "+err.Error())
			return
		}
		r.send(chatID, fmt.Sprintf("Current engine: %s (%s)\nAvailable: %s",
			eng.Name(), eng.GetModel(), strings.Join(r.EngManager.Names(), ", ")))
		return
	}
	name := strings.Fields(args)[0]
	eng, err := r.EngManager.Set(chatID, name)
	if err != nil {
		r.send(chatID, "Cannot switch: "+err.Error())
		return
	}
	r.send(chatID, fmt.Sprintf("Engine: %s (%s).", eng.Name(), eng.GetModel()))
}

func (r *Router) handlePromptCommand(chatID int64, args string) {
	switch strings.ToLower(args) {
	case "":
		p := r.EngManager.Prompt(chatID)
		switch {
		case p != "":
		case strings.TrimSpace(r.DefaultPrompt) != "":
			p = strings.TrimSpace(r.DefaultPrompt) + " (default)"
		default:
			p = ocr.DefaultPrompt + " (default)"
		}
		r.send(chatID, "Current prompt: "+p)
	case "reset", "default":
		r.EngManager.SetPrompt(chatID, "")
		r.send(chatID, "Prompt reset to the default.")
	default:
		r.EngManager.SetPrompt(chatID, args)
		r.send(chatID, "Prompt saved.")
	}
}
