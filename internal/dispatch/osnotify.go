package dispatch

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"medassist/pkg/logx"
)

const notifyTimeout = 5 * time.Second

// CommandNotifier delivers the OS channel by invoking a desktop
// notifier binary (notify-send by default) with the title and body as
// arguments. A missing binary stands in for "permission not granted":
// Granted reports false and the channel is skipped silently.
type CommandNotifier struct {
	path string
	log  logx.Logger
}

func NewCommandNotifier(command string, log logx.Logger) *CommandNotifier {
	command = strings.TrimSpace(command)
	if command == "" {
		command = "notify-send"
	}
	path, err := exec.LookPath(command)
	if err != nil {
		log.Info("os notifier unavailable", logx.String("command", command))
		return &CommandNotifier{log: log}
	}
	return &CommandNotifier{path: path, log: log}
}

func (n *CommandNotifier) Granted() bool { return n.path != "" }

func (n *CommandNotifier) Show(title, body string) error {
	if !n.Granted() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	return exec.CommandContext(ctx, n.path, title, body).Run()
}

var _ OSNotifier = (*CommandNotifier)(nil)
