package engine

import (
	"fmt"
	"strings"
)

// ChatTemplateFunc formats a slice of messages into a prompt string.
type ChatTemplateFunc func(msgs []Message) string

// templateRegistry maps architecture names to their chat template functions.
var templateRegistry = map[string]ChatTemplateFunc{
	"llama":   FormatLlama3,
	"llama3":  FormatLlama3,
	"qwen2":   FormatChatML,
	"chatml":  FormatChatML,
	"mistral": FormatMistral,
	"gemma":   FormatGemma,
	"gemma2":  FormatGemma,
	"phi3":    FormatPhi3,
}

// LookupTemplate returns the chat template registered for name.
func LookupTemplate(name string) (ChatTemplateFunc, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, ErrNoChatTemplate
	}
	fn, ok := templateRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q", ErrNoChatTemplate, name)
	}
	return fn, nil
}

// ApplyTemplate renders msgs with the template registered for name.
func ApplyTemplate(name string, msgs []Message) (string, error) {
	fn, err := LookupTemplate(name)
	if err != nil {
		return "", err
	}
	return fn(msgs), nil
}

// PrepareInput renders msgs with the handle's chat template. Any template
// failure falls back to the message contents joined by ". " as plain text;
// templated reports which path was taken.
func PrepareInput(h Handle, msgs []Message) (prompt string, templated bool) {
	if p, err := h.ApplyChatTemplate(msgs); err == nil {
		return p, true
	}
	return PlainText(msgs), false
}

// PlainText joins message contents with ". ".
func PlainText(msgs []Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, ". ")
}

// FormatLlama3 formats messages using the Llama 3 Instruct chat template.
func FormatLlama3(msgs []Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	for _, m := range msgs {
		b.WriteString("<|start_header_id|>")
		b.WriteString(string(m.Role))
		b.WriteString("<|end_header_id|>\n\n")
		b.WriteString(m.Content)
		b.WriteString("<|eot_id|>")
	}
	b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return b.String()
}

// FormatChatML formats messages using the ChatML template (Qwen2 family).
// A default system message is added when none is present.
func FormatChatML(msgs []Message) string {
	var b strings.Builder
	hasSystem := false
	for _, m := range msgs {
		if m.Role == RoleSystem {
			hasSystem = true
			break
		}
	}
	if !hasSystem {
		b.WriteString("<|im_start|>system\nYou are a helpful assistant.<|im_end|>\n")
	}
	for _, m := range msgs {
		b.WriteString("<|im_start|>")
		b.WriteString(string(m.Role))
		b.WriteString("\n")
		b.WriteString(m.Content)
		b.WriteString("<|im_end|>\n")
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

// FormatMistral formats messages using the Mistral Instruct template. A system
// message is folded into the next user turn.
func FormatMistral(msgs []Message) string {
	var b strings.Builder
	b.WriteString("<s>")
	var system string
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleUser:
			b.WriteString("[INST] ")
			if system != "" {
				b.WriteString(system)
				b.WriteString("\n\n")
				system = ""
			}
			b.WriteString(m.Content)
			b.WriteString(" [/INST]")
		case RoleAssistant:
			b.WriteString(m.Content)
			b.WriteString("</s>")
		}
	}
	return b.String()
}

// FormatGemma formats messages using the Gemma turn template. Gemma has no
// system role; system content is prefixed to the first user turn.
func FormatGemma(msgs []Message) string {
	var b strings.Builder
	b.WriteString("<bos>")
	var system string
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = m.Content
			continue
		case RoleAssistant:
			b.WriteString("<start_of_turn>model\n")
		default:
			b.WriteString("<start_of_turn>user\n")
			if system != "" {
				b.WriteString(system)
				b.WriteString("\n\n")
				system = ""
			}
		}
		b.WriteString(m.Content)
		b.WriteString("<end_of_turn>\n")
	}
	b.WriteString("<start_of_turn>model\n")
	return b.String()
}

// FormatPhi3 formats messages using the Phi-3 template.
func FormatPhi3(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString("<|")
		b.WriteString(string(m.Role))
		b.WriteString("|>\n")
		b.WriteString(m.Content)
		b.WriteString("<|end|>\n")
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}
