package outbound

import (
	"context"

	"github.com/ajkula/notifytrigger/domain/model"
)

// OutputSink receives trigger output line by line while the command runs
type OutputSink interface {
	Stdout(line string)
	Stderr(line string)
}

// TriggerRunner runs the configured command for one downloaded file.
// The error return is reserved for a command that could not be started;
// a non-zero exit is reported through the outcome.
type TriggerRunner interface {
	Execute(ctx context.Context, command, filePath string, sink OutputSink) (*model.ProcessingOutcome, error)
}

// MachineIDService provides a stable identifier for this host
type MachineIDService interface {
	GetMachineID() (string, error)
}
