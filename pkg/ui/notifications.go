package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// Notifier prints a line and, when the platform supports it, raises a
// desktop notification. Desktop delivery failures are ignored.
type Notifier struct {
	w      io.Writer
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier(w io.Writer) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	}
	return NewNotifierWithSender(w, sender)
}

// NewNotifierWithSender creates a Notifier over sender, which may be nil.
func NewNotifierWithSender(w io.Writer, sender NotificationSender) *Notifier {
	return &Notifier{w: w, sender: sender}
}

// GroupFinished announces the end of a group run.
func (n *Notifier) GroupFinished(group string, succeeded, failed int) {
	title := "instaprofiler: " + group
	var b strings.Builder
	fmt.Fprintf(&b, "%d accounts audited", succeeded)
	if failed > 0 {
		fmt.Fprintf(&b, ", %d failed", failed)
	}
	msg := b.String()

	if failed > 0 {
		fmt.Fprintf(n.w, "\n%s: %s\n", Red(title), Red(msg))
	} else {
		fmt.Fprintf(n.w, "\n%s: %s\n", Green(title), Green(msg))
	}
	if n.sender != nil {
		_ = n.sender.Send(title, msg)
	}
}
