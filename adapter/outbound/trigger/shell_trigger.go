package trigger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

const (
	// FileNameEnv holds the downloaded file path for the trigger command
	FileNameEnv = "TRIGGER_FILE_NAME"

	defaultShell = "/bin/bash"

	// grace period between SIGTERM and SIGKILL on cancellation
	killDelay = 5 * time.Second
)

// ShellTrigger runs the trigger command through bash -c, streaming its
// output line by line to the sink while it runs
type ShellTrigger struct {
	shell  string
	logger outbound.Logger
}

var _ outbound.TriggerRunner = (*ShellTrigger)(nil)

func NewShellTrigger(logger outbound.Logger) *ShellTrigger {
	return &ShellTrigger{shell: defaultShell, logger: logger}
}

// Execute runs command with TRIGGER_FILE_NAME set to filePath.
// A non-zero exit is reported in the outcome, the error is kept for
// commands that could not be started.
func (t *ShellTrigger) Execute(ctx context.Context, command, filePath string, sink outbound.OutputSink) (*model.ProcessingOutcome, error) {
	cmd := exec.CommandContext(ctx, t.shell, "-c", command)
	cmd.Env = append(os.Environ(), FileNameEnv+"="+filePath)
	// own process group so cancellation reaches the children of the shell
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = killDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", t.shell, err)
	}

	t.logger.Debug("Trigger started", "pid", cmd.Process.Pid, "file", filePath)

	var stdoutText, stderrText strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, &stdoutText, sink.Stdout)
	}()
	go func() {
		defer wg.Done()
		streamLines(stderr, &stderrText, sink.Stderr)
	}()

	// pipes must be drained before Wait closes them
	wg.Wait()
	waitErr := cmd.Wait()

	outcome := &model.ProcessingOutcome{
		ExitCode:       cmd.ProcessState.ExitCode(),
		StandardOutput: stdoutText.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		outcome.Succeeded = true
	case errors.As(waitErr, &exitErr):
		outcome.StandardError = stderrText.String()
	default:
		outcome.StandardError = stderrText.String()
		t.logger.Warn("Trigger wait failed", "file", filePath, "error", waitErr)
	}

	t.logger.Debug("Trigger exited", "file", filePath, "exitCode", outcome.ExitCode, "succeeded", outcome.Succeeded)
	return outcome, nil
}

func streamLines(r io.Reader, text *strings.Builder, emit func(string)) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			text.WriteString(line)
			emit(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			return
		}
	}
}
