package llm

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// bedrockDialect is the wire format a Bedrock model family accepts.
type bedrockDialect int

const (
	// dialectChat is a messages list with a separate system string.
	dialectChat bedrockDialect = iota + 1
	// dialectInstruction is a single prompt wrapped in [INST] tags.
	dialectInstruction
	// dialectPlain is a single untagged prompt.
	dialectPlain
)

// bedrockFamily describes how to talk to one model family.
type bedrockFamily struct {
	name    string
	dialect bedrockDialect

	// maxTokensPath and temperaturePath are sjson paths in the request body.
	maxTokensPath   string
	temperaturePath string
	promptPath      string

	// textPaths are tried in order when extracting generated text.
	textPaths []string

	promptTokensPath     string
	completionTokensPath string
}

var bedrockFamilies = map[string]bedrockFamily{
	"anthropic": {
		name:                 "anthropic",
		dialect:              dialectChat,
		maxTokensPath:        "max_tokens",
		temperaturePath:      "temperature",
		textPaths:            []string{"content"},
		promptTokensPath:     "usage.input_tokens",
		completionTokensPath: "usage.output_tokens",
	},
	"meta": {
		name:                 "meta",
		dialect:              dialectInstruction,
		maxTokensPath:        "max_gen_len",
		temperaturePath:      "temperature",
		promptPath:           "prompt",
		textPaths:            []string{"generation"},
		promptTokensPath:     "prompt_token_count",
		completionTokensPath: "generation_token_count",
	},
	"mistral": {
		name:            "mistral",
		dialect:         dialectInstruction,
		maxTokensPath:   "max_tokens",
		temperaturePath: "temperature",
		promptPath:      "prompt",
		textPaths:       []string{"outputs.0.text"},
	},
	"amazon": {
		name:                 "amazon",
		dialect:              dialectPlain,
		maxTokensPath:        "textGenerationConfig.maxTokenCount",
		temperaturePath:      "textGenerationConfig.temperature",
		promptPath:           "inputText",
		textPaths:            []string{"results.0.outputText"},
		promptTokensPath:     "inputTextTokenCount",
		completionTokensPath: "results.0.tokenCount",
	},
	"cohere": {
		name:            "cohere",
		dialect:         dialectPlain,
		maxTokensPath:   "max_tokens",
		temperaturePath: "temperature",
		promptPath:      "prompt",
		textPaths:       []string{"generations.0.text"},
	},
}

// inferenceProfilePrefixes are the cross-region prefixes Bedrock allows in
// front of a model id.
var inferenceProfilePrefixes = []string{"us.", "eu.", "apac.", "global."}

// familyFor maps a model id such as "us.anthropic.claude-3-5-sonnet" to its family.
func familyFor(modelID string) (bedrockFamily, error) {
	id := modelID
	for _, p := range inferenceProfilePrefixes {
		if strings.HasPrefix(id, p) {
			id = strings.TrimPrefix(id, p)
			break
		}
	}
	prefix, _, _ := strings.Cut(id, ".")
	fam, ok := bedrockFamilies[prefix]
	if !ok {
		return bedrockFamily{}, &ConfigError{Field: "model", Reason: fmt.Sprintf("has unsupported bedrock model family %q", prefix)}
	}
	return fam, nil
}

// buildBedrockBody renders messages into the family's request payload.
func buildBedrockBody(fam bedrockFamily, messages []Message, cfg Config) ([]byte, error) {
	body := []byte(`{}`)
	var err error

	switch fam.dialect {
	case dialectChat:
		system, msgs, cerr := convertAnthropicMessages(messages)
		if cerr != nil {
			return nil, cerr
		}
		if body, err = sjson.SetBytes(body, "anthropic_version", "bedrock-2023-05-31"); err != nil {
			return nil, err
		}
		if system != "" {
			if body, err = sjson.SetBytes(body, "system", system); err != nil {
				return nil, err
			}
		}
		if body, err = sjson.SetBytes(body, "messages", msgs); err != nil {
			return nil, err
		}
	case dialectInstruction:
		if body, err = sjson.SetBytes(body, fam.promptPath, instructionPrompt(messages)); err != nil {
			return nil, err
		}
	default:
		if body, err = sjson.SetBytes(body, fam.promptPath, plainPrompt(messages)); err != nil {
			return nil, err
		}
	}

	if body, err = sjson.SetBytes(body, fam.maxTokensPath, cfg.MaxTokens); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, fam.temperaturePath, cfg.Temperature); err != nil {
		return nil, err
	}
	return body, nil
}

// instructionPrompt folds the conversation into one [INST]-tagged prompt.
func instructionPrompt(messages []Message) string {
	var b strings.Builder
	var system string
	b.WriteString("<s>")
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = msg.Content
		case RoleUser:
			b.WriteString("[INST] ")
			if system != "" {
				b.WriteString(system)
				b.WriteString("\n\n")
				system = ""
			}
			b.WriteString(msg.Content)
			b.WriteString(" [/INST]")
		case RoleAssistant:
			b.WriteString(" ")
			b.WriteString(msg.Content)
			b.WriteString("</s><s>")
		}
	}
	return b.String()
}

// plainPrompt folds the conversation into a single untagged prompt.
func plainPrompt(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			parts = append(parts, "Assistant: "+msg.Content)
		default:
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// parseBedrockBody extracts text and usage according to the family.
func parseBedrockBody(fam bedrockFamily, body []byte) (string, *Usage, error) {
	if !gjson.ValidBytes(body) {
		return "", nil, fmt.Errorf("bedrock: %w: invalid JSON", ErrNoContent)
	}

	var text string
	found := false
	for _, path := range fam.textPaths {
		v := gjson.GetBytes(body, path)
		if !v.Exists() {
			continue
		}
		found = true
		if v.IsArray() {
			var b strings.Builder
			for _, block := range v.Array() {
				b.WriteString(block.Get("text").String())
			}
			text = b.String()
		} else {
			text = v.String()
		}
		break
	}
	if !found {
		return "", nil, fmt.Errorf("bedrock %s: %w", fam.name, ErrNoContent)
	}

	var usage *Usage
	if fam.promptTokensPath != "" {
		in := gjson.GetBytes(body, fam.promptTokensPath)
		out := gjson.GetBytes(body, fam.completionTokensPath)
		if in.Exists() || out.Exists() {
			usage = &Usage{
				PromptTokens:     int(in.Int()),
				CompletionTokens: int(out.Int()),
				TotalTokens:      int(in.Int() + out.Int()),
			}
		}
	}
	return text, usage, nil
}
