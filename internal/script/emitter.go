// Package script materializes driver programs into an adapter's workspace.
// Emission is pure text generation; nothing here executes a process.
package script

import (
	"fmt"
	"os"
	"strings"
)

// Dir abstracts the workspace the emitter writes into.
type Dir interface {
	Acquire() (string, error)
	Join(name string) string
}

// Emitter writes driver templates into a workspace.
type Emitter struct {
	ws Dir
}

func NewEmitter(ws Dir) *Emitter {
	return &Emitter{ws: ws}
}

// Emit writes the template to a filename unique to taskID and returns its
// path. Concurrent emissions of the same template never share a file.
func (e *Emitter) Emit(id ID, taskID string) (string, error) {
	body, ok := templates[id]
	if !ok {
		return "", fmt.Errorf("unknown driver template %q", id)
	}
	if _, err := e.ws.Acquire(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.py", strings.ReplaceAll(string(id), "-", "_"), taskID)
	path := e.ws.Join(name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("emit driver %s: %w", id, err)
	}
	return path, nil
}
