package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"recontext/internal/domain"
)

// CommandSpec describes how to launch a generator subprocess.
type CommandSpec struct {
	Command string
	Args    []string
	Env     map[string]string
}

// CommandClient shells out to a configured command for each generation. The
// prompt is written to stdin and the response read from stdout, which makes
// any CLI-accessible model usable as a content source.
type CommandClient struct {
	spec CommandSpec
}

// NewCommandClient validates the spec and returns a subprocess-backed client.
func NewCommandClient(spec CommandSpec) (*CommandClient, error) {
	if spec.Command == "" {
		return nil, domain.NewEngineError(domain.ErrConfigInvalid.Code, "command provider has no command")
	}
	return &CommandClient{spec: spec}, nil
}

// Name identifies the client in logs.
func (c *CommandClient) Name() string { return "command:" + c.spec.Command }

// Complete runs the command once with the prompt on stdin.
func (c *CommandClient) Complete(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.spec.Command, c.spec.Args...)
	cmd.Env = os.Environ()
	for k, v := range c.spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("command interrupted: %w", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("command failed: %w (stderr: %s)", err, detail)
		}
		return "", fmt.Errorf("command failed: %w", err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("command produced no output")
	}
	return out, nil
}
