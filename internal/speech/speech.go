// Package speech voices stimuli through an external text-to-speech command.
package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Nop discards every utterance.
type Nop struct{}

// Speak implements session.Speaker.
func (Nop) Speak(string) {}

// Command runs a text-to-speech program with the text as last argument.
// A new utterance stops the one still playing.
type Command struct {
	name string
	args []string

	// OnError receives failures of the speech process. Optional.
	OnError func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewCommand parses a command line such as "espeak -s 140".
func NewCommand(cmdline string) (*Command, error) {
	parts := strings.Fields(cmdline)
	if len(parts) == 0 {
		return nil, fmt.Errorf("speech command is empty")
	}
	if _, err := exec.LookPath(parts[0]); err != nil {
		return nil, fmt.Errorf("speech command %q not found: %w", parts[0], err)
	}
	return &Command{name: parts[0], args: parts[1:]}, nil
}

// Speak starts the command in the background and returns immediately.
func (c *Command) Speak(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	args := append(append([]string(nil), c.args...), text)
	cmd := exec.CommandContext(ctx, c.name, args...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		if err := cmd.Run(); err != nil && ctx.Err() == nil && c.OnError != nil {
			c.OnError(fmt.Errorf("failed to speak %q: %w", text, err))
		}
	}()
}

// Close stops any utterance and waits for the process to exit.
func (c *Command) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}
