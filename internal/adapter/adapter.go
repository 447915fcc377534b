// Package adapter defines Grimoire's venue adapter interface (spec.md §6)
// and a registry, grounded in the teacher's core/decorator/registry.go
// sync.RWMutex + capability-registration pattern.
package adapter

import "context"

// ExecutionType classifies how an adapter carries out actions.
type ExecutionType string

const (
	OnChain  ExecutionType = "onchain"
	OffChain ExecutionType = "offchain"
)

// Meta describes an adapter's capabilities (spec.md §6 venue adapter meta).
type Meta struct {
	Name            string
	SupportedChains []uint64
	Actions         []string
	ExecutionType   ExecutionType
	Description     string
}

// Context carries the request-scoped data every adapter call needs
// (spec.md §6 VenueAdapterContext).
type Context struct {
	Provider      string
	WalletAddress string
	ChainId       uint64
}

// Action is one resolved venue call: method name plus evaluated arguments
// and constraints.
type Action struct {
	Method      string
	Args        map[string]any
	Constraints map[string]any
}

// BuiltTransaction is one unsigned transaction an adapter would submit.
type BuiltTransaction struct {
	To       string
	Data     string
	Value    string // decimal string, spec.md §6 gas serialisation rule
	ChainId  uint64
	GasLimit string
}

// ActionExecutionResult is the outcome of a live adapter.ExecuteAction call.
type ActionExecutionResult struct {
	Success     bool
	TxHash      string
	GasUsed     string // decimal string
	Output      map[string]any
	Error       string
}

// SimulationResult is the outcome of a dry-run adapter.SimulateAction call.
type SimulationResult struct {
	Success bool
	GasUsed string // decimal string
	Output  map[string]any
	Error   string
}

// Adapter is the venue adapter capability interface (spec.md §6, verbatim).
type Adapter interface {
	Meta() Meta
	BuildAction(ctx context.Context, action Action, actx Context) ([]BuiltTransaction, error)
	ExecuteAction(ctx context.Context, action Action, actx Context) (ActionExecutionResult, error)
	SimulateAction(ctx context.Context, action Action, actx Context) (SimulationResult, error)
}
