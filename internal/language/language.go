// Package language defines the set of languages a room can hold and the
// starter template seeded into every new room buffer.
package language

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Language identifies a supported language on the wire and in room state.
type Language string

const (
	JavaScript Language = "javascript"
	Python     Language = "python"
)

// Default is the active language assigned to freshly created rooms.
const Default = JavaScript

// All lists every supported language. Room state always carries one buffer
// per entry, even when blank.
var All = []Language{JavaScript, Python}

// IsSupported reports whether l names a known language.
func IsSupported(l Language) bool {
	for _, known := range All {
		if l == known {
			return true
		}
	}
	return false
}

const javascriptTemplate = `// JavaScript Example
// Try running this code!

function fibonacci(n) {
    if (n <= 1) return n;
    return fibonacci(n - 1) + fibonacci(n - 2);
}

console.log("Fibonacci sequence:");
for (let i = 0; i < 10; i++) {
    console.log(` + "`fib(${i}) = ${fibonacci(i)}`" + `);
}`

const pythonTemplate = `# Python Example
# Try running this code!

def fibonacci(n):
    if n <= 1:
        return n
    return fibonacci(n - 1) + fibonacci(n - 2)

print("Fibonacci sequence:")
for i in range(10):
    print(f"fib({i}) = {fibonacci(i)}")`

var defaultTemplates = map[Language]string{
	JavaScript: javascriptTemplate,
	Python:     pythonTemplate,
}

// Templates returns a fresh copy of the per-language starter code. Callers
// own the returned map and may mutate it.
func Templates() map[Language]string {
	out := make(map[Language]string, len(defaultTemplates))
	for lang, code := range defaultTemplates {
		out[lang] = code
	}
	return out
}

// Template returns the starter code for a single language, or the empty
// string for an unknown one.
func Template(l Language) string {
	return defaultTemplates[l]
}

// LoadTemplateOverrides reads a YAML file mapping language name to template
// text and replaces the built-in template for each supported language it
// names. Unknown languages in the file are an error rather than silently
// ignored, so typos surface at startup.
func LoadTemplateOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading templates %s: %w", path, err)
	}

	var overrides map[Language]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing templates %s: %w", path, err)
	}

	for lang, code := range overrides {
		if !IsSupported(lang) {
			return fmt.Errorf("templates %s: unknown language %q", path, lang)
		}
		defaultTemplates[lang] = code
	}
	return nil
}
