package core

import "context"

// Runner is the orchestration contract for driving a root agent inside a
// conversational session.
//
// Guarantees implementations must uphold:
//   - Events of one invocation arrive in production order.
//   - The events channel closes when the invocation finishes, whether it
//     succeeded, failed or was cancelled; the error channel delivers any
//     terminal error and then closes too.
//   - Cancellation (context or Cancel) stops further emission and releases
//     invocation resources.
//   - Partial events may appear on the stream; consumers decide how to
//     treat them via IsPartial.
type Runner interface {
	// Run starts an asynchronous execution of userContent against the
	// session. The returned invocation ID identifies the run for Cancel;
	// the immediate error covers startup failures such as session load.
	Run(ctx context.Context, sessionID string, userContent Content) (string, <-chan Event, <-chan error, error)

	// Cancel requests cooperative termination of an in-flight invocation.
	// Cancelling an unknown or finished invocation returns an error
	// naming the condition.
	Cancel(invocationID string) error
}
