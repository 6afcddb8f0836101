package model

// ProcessingOutcome is the result of one trigger run. It is logged and discarded.
type ProcessingOutcome struct {
	Succeeded      bool
	ExitCode       int
	StandardOutput string
	// StandardError is only kept when the trigger failed
	StandardError string
}

// Notification is one message received from the change notification source
type Notification struct {
	Type string
	Body []byte
}

// IsFileChanged reports whether the notification declares a file-change payload
func (n *Notification) IsFileChanged() bool {
	return n.Type == string(FileChangedEvent)
}
