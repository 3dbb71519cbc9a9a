package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&cliOptions{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestModelsCommandListsCatalog(t *testing.T) {
	out, err := runCommand(t, "models")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Anthropic", "Gemini", "OpenAI", "gpt-4o-mini", "gemini-1.5-flash"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in the catalog listing, got:\n%s", want, out)
		}
	}
}

func TestModelsCommandSingleProvider(t *testing.T) {
	out, err := runCommand(t, "models", "OpenAI")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "gpt-4o-mini") {
		t.Errorf("Expected the OpenAI models, got:\n%s", out)
	}
	if strings.Contains(out, "claude") {
		t.Errorf("Expected only OpenAI models, got:\n%s", out)
	}
}

func TestModelsCommandUnknownProvider(t *testing.T) {
	if _, err := runCommand(t, "models", "Nope"); err == nil {
		t.Error("Expected an error for an unknown provider")
	}
}
