package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"dictation/internal/words"
)

// ErrNoPlayerCommand is returned when no usable playback command is configured
var ErrNoPlayerCommand = errors.New("no audio playback command available")

// knownCommands are tried in order by DetectCommand
var knownCommands = []string{
	"ffplay -nodisp -autoexit -loglevel quiet",
	"mpg123 -q",
	"afplay",
	"paplay",
}

// DetectCommand returns the first known playback command found on PATH
func DetectCommand() (string, error) {
	for _, line := range knownCommands {
		name := strings.Fields(line)[0]
		if _, err := exec.LookPath(name); err == nil {
			return line, nil
		}
	}
	return "", ErrNoPlayerCommand
}

// CommandPlayer plays clips by running an OS command with the clip's local
// file appended as the last argument.
type CommandPlayer struct {
	name    string
	args    []string
	resolve func(clip string) string
}

// NewCommandPlayer parses commandLine ("mpg123 -q") and maps each clip path to
// a local file with resolve. A nil resolve passes clips through unchanged.
func NewCommandPlayer(commandLine string, resolve func(clip string) string) (*CommandPlayer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, ErrNoPlayerCommand
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoPlayerCommand, err)
	}
	if resolve == nil {
		resolve = func(clip string) string { return clip }
	}
	return &CommandPlayer{name: fields[0], args: fields[1:], resolve: resolve}, nil
}

// Play starts the command. The process outlives ctx; use Stop to end it.
func (p *CommandPlayer) Play(ctx context.Context, clip string) (words.Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	args := append(append([]string(nil), p.args...), p.resolve(clip))
	cmd := exec.Command(p.name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", p.name, err)
	}

	pb := &commandPlayback{cmd: cmd, done: make(chan struct{})}
	go pb.wait()
	return pb, nil
}

type commandPlayback struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stopped bool
	err     error
}

func (p *commandPlayback) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	if !p.stopped {
		p.err = err
	}
	p.mu.Unlock()
	close(p.done)
}

// Stop kills the process; a stopped playback reports no error
func (p *commandPlayback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	p.stopped = true
	_ = p.cmd.Process.Kill()
}

func (p *commandPlayback) Done() <-chan struct{} { return p.done }

func (p *commandPlayback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
