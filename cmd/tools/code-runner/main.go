package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"coderoom/internal/executor"
	"coderoom/internal/language"
)

var host *executor.Host

func main() {
	wasmPath := os.Getenv("CODEROOM_PYTHON_WASM")
	if wasmPath == "" {
		wasmPath = "./assets/python.wasm"
	}
	host = executor.New(executor.Options{PythonWasmPath: wasmPath})

	s := server.NewMCPServer("coderoom-code-runner", "0.1.0")

	var langs []string
	for _, lang := range language.All {
		langs = append(langs, string(lang))
	}

	s.AddTool(mcp.Tool{
		Name:        "code_run",
		Description: fmt.Sprintf("Execute code in an in-process sandbox. Supported languages: %s.", strings.Join(langs, ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Programming language (javascript, python)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
			},
			Required: []string{"language", "code"},
		},
	}, handleCodeRun)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}

func handleCodeRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	lang, _ := args["language"].(string)
	code, _ := args["code"].(string)

	if lang == "" || code == "" {
		return errResult("error: 'language' and 'code' are required"), nil
	}

	result := host.Run(ctx, code, language.Language(lang))

	var output strings.Builder
	for _, line := range result.Logs {
		output.WriteString(line)
		output.WriteString("\n")
	}
	if result.Error != "" {
		output.WriteString(result.Error)
		output.WriteString("\n")
	}

	text := output.String()
	if len(text) > 4000 {
		text = text[:4000] + "\n... (output truncated)"
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: result.Type != "success",
	}, nil
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
