package messages

import (
	"fmt"
	"strings"
)

// Typed messages exchanged across the retrieve/deploy transport boundary.
// The transport's loosely-shaped status payloads are resolved into these
// tagged values once, at the boundary, so the engine never probes shapes.

// OperationStatus is the terminal state of a retrieve or deploy operation.
type OperationStatus string

const (
	StatusOK        OperationStatus = "ok"
	StatusFailed    OperationStatus = "failed"
	StatusCancelled OperationStatus = "cancelled"
)

// ProgressKind tags which fields of a ProgressUpdate are meaningful.
type ProgressKind string

const (
	// KindProgress carries a current/total pair, optionally with a status line.
	KindProgress ProgressKind = "progress"
	// KindStatusOnly carries only a human-readable status line.
	KindStatusOnly ProgressKind = "status-only"
)

// ProgressUpdate is one progress report from an in-flight operation.
// Current is monotonically non-decreasing within one operation.
type ProgressUpdate struct {
	Kind    ProgressKind `json:"kind"`
	Current int          `json:"current,omitempty"`
	Total   int          `json:"total,omitempty"`
	Status  string       `json:"status,omitempty"`
}

// Progress builds a counted progress update.
func Progress(current, total int, status string) ProgressUpdate {
	return ProgressUpdate{Kind: KindProgress, Current: current, Total: total, Status: status}
}

// StatusOnly builds an update that carries only a status line.
func StatusOnly(status string) ProgressUpdate {
	return ProgressUpdate{Kind: KindStatusOnly, Status: status}
}

func (p ProgressUpdate) String() string {
	if p.Kind == KindStatusOnly {
		return p.Status
	}
	if p.Status != "" {
		return fmt.Sprintf("%d/%d %s", p.Current, p.Total, p.Status)
	}
	return fmt.Sprintf("%d/%d", p.Current, p.Total)
}

// ComponentProblem is a per-component failure detail reported by the remote
// side of a deploy or retrieve.
type ComponentProblem struct {
	Type     string `json:"type"`
	FullName string `json:"fullName"`
	Problem  string `json:"problem"`
}

func (c ComponentProblem) String() string {
	return fmt.Sprintf("%s %s: %s", c.Type, c.FullName, c.Problem)
}

// OperationResult is the terminal resolution of an operation. Expected
// failure conditions (no connection, empty selection, remote rejection) are
// reported through this type, never raised.
type OperationResult struct {
	Success  bool               `json:"success"`
	Status   OperationStatus    `json:"status"`
	Message  string             `json:"message"`
	Details  []string           `json:"details,omitempty"`
	Problems []ComponentProblem `json:"problems,omitempty"`
}

// Succeeded builds a success result.
func Succeeded(message string) OperationResult {
	return OperationResult{Success: true, Status: StatusOK, Message: message}
}

// Failure builds a failure result.
func Failure(message string) OperationResult {
	return OperationResult{Success: false, Status: StatusFailed, Message: message}
}

// Failuref builds a failure result with a formatted message.
func Failuref(format string, args ...any) OperationResult {
	return Failure(fmt.Sprintf(format, args...))
}

// Cancelled builds a cancellation result. Cancellation is a distinct outcome
// from failure so callers can present it as such.
func Cancelled(message string) OperationResult {
	return OperationResult{Success: false, Status: StatusCancelled, Message: message}
}

// IsCancelled reports whether the result is a cancellation rather than a failure.
func (r OperationResult) IsCancelled() bool {
	return r.Status == StatusCancelled
}

// Summary renders the result as a single line suitable for logging.
func (r OperationResult) Summary() string {
	var b strings.Builder
	b.WriteString(string(r.Status))
	if r.Message != "" {
		b.WriteString(": ")
		b.WriteString(r.Message)
	}
	if len(r.Problems) > 0 {
		b.WriteString(fmt.Sprintf(" (%d component problems)", len(r.Problems)))
	}
	return b.String()
}
