package model

import "time"

// FunnelState is the lifecycle of one event funnel run
type FunnelState string

const (
	FunnelNotStarted FunnelState = "NotStarted"
	FunnelCatchingUp FunnelState = "CatchingUp"
	FunnelSubscribed FunnelState = "Subscribed"
	FunnelCompleted  FunnelState = "Completed"
	FunnelFailed     FunnelState = "Failed"
)

// IsTerminal reports whether no further transition can happen
func (s FunnelState) IsTerminal() bool {
	return s == FunnelCompleted || s == FunnelFailed
}

// ItemState is the lifecycle of one queued event inside the file processor
type ItemState string

const (
	ItemQueued      ItemState = "Queued"
	ItemMatching    ItemState = "Matching"
	ItemSkipped     ItemState = "Skipped"
	ItemDownloading ItemState = "Downloading"
	ItemTriggering  ItemState = "Triggering"
	ItemCleaningUp  ItemState = "CleaningUp"
	ItemDone        ItemState = "Done"
	ItemFatalError  ItemState = "FatalError"
)

// PipelineStatus is a point-in-time snapshot of the pipeline
type PipelineStatus struct {
	NodeID      string      `json:"nodeId"`
	StartedAt   time.Time   `json:"startedAt"`
	FunnelState FunnelState `json:"funnelState"`

	CurrentPath  string    `json:"currentPath,omitempty"`
	CurrentState ItemState `json:"currentState,omitempty"`

	CatchUpEvents        int `json:"catchUpEvents"`
	LiveEvents           int `json:"liveEvents"`
	IgnoredNotifications int `json:"ignoredNotifications"`
	Skipped              int `json:"skipped"`
	Processed            int `json:"processed"`
	Deleted              int `json:"deleted"`

	LastProcessedPath string    `json:"lastProcessedPath,omitempty"`
	LastProcessedAt   time.Time `json:"lastProcessedAt,omitempty"`
	FatalError        string    `json:"fatalError,omitempty"`
}

// Healthy reports whether the pipeline is still able to process events
func (s PipelineStatus) Healthy() bool {
	return s.FatalError == "" && s.FunnelState != FunnelFailed && s.CurrentState != ItemFatalError
}
