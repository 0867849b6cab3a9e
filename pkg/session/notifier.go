package session

import "log/slog"

// Notifier receives the user-facing side effects of state changes.
// Calls are made from the controller loop and must not block.
type Notifier interface {
	NotifyRecording()
	NotifyThinking()
	NotifyClear()
	NotifyMicUnavailable(message string)
}

// LogNotifier writes notifications to a logger. It is the notifier of a
// headless client.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) NotifyRecording() { n.logger().Info("🎤 recording") }
func (n LogNotifier) NotifyThinking()  { n.logger().Info("🤔 thinking") }
func (n LogNotifier) NotifyClear()     { n.logger().Info("clear") }

func (n LogNotifier) NotifyMicUnavailable(message string) {
	n.logger().Warn("microphone unavailable", "message", message)
}

// multiNotifier fans out to several notifiers in order.
type multiNotifier []Notifier

// Notifiers combines notifiers. Nil entries are skipped.
func Notifiers(ns ...Notifier) Notifier {
	var m multiNotifier
	for _, n := range ns {
		if n != nil {
			m = append(m, n)
		}
	}
	return m
}

func (m multiNotifier) NotifyRecording() {
	for _, n := range m {
		n.NotifyRecording()
	}
}

func (m multiNotifier) NotifyThinking() {
	for _, n := range m {
		n.NotifyThinking()
	}
}

func (m multiNotifier) NotifyClear() {
	for _, n := range m {
		n.NotifyClear()
	}
}

func (m multiNotifier) NotifyMicUnavailable(message string) {
	for _, n := range m {
		n.NotifyMicUnavailable(message)
	}
}
