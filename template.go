package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Variables is the flat name -> value mapping consumed by command and
// environment-value expansion. It is built once per configuration.
type Variables map[string]string

type MissingVariableError struct {
	Name     string
	Template string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable '%v' in template: %v", e.Name, e.Template)
}

// BuildVariables resolves the backend-agnostic template variables. They are
// computed after the user-supplied ones, so computed keys win on conflict.
func BuildVariables(cfg *Config, repoRoot string) Variables {
	vars := make(Variables, len(cfg.Variables)+5)
	for key, value := range cfg.Variables {
		vars[key] = value
	}

	modelPath := cfg.Model.Path
	if modelPath != "" && !filepath.IsAbs(modelPath) {
		modelPath = filepath.Join(repoRoot, modelPath)
	}
	modelPath = filepath.ToSlash(modelPath)
	modelName := cfg.Model.Name
	if modelName == "" && modelPath != "" {
		modelName = filepath.Base(modelPath)
	}

	vars["repo_root"] = filepath.ToSlash(repoRoot)
	vars["model_path"] = modelPath
	vars["model_name"] = modelName
	vars["prompt"] = cfg.Prompt
	vars["max_tokens"] = strconv.Itoa(cfg.MaxTokens)
	return vars
}

// ExpandTemplate substitutes {name} placeholders. Doubled braces produce
// literal braces. An undefined variable fails with MissingVariableError and no
// partial output.
func ExpandTemplate(template string, vars Variables) (string, error) {
	var out strings.Builder
	out.Grow(len(template))
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder in template: %v", template)
			}
			name := template[i+1 : i+1+end]
			value, ok := vars[name]
			if !ok {
				return "", &MissingVariableError{Name: name, Template: template}
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("single '}' in template: %v", template)
		default:
			out.WriteByte(template[i])
		}
	}
	return out.String(), nil
}
