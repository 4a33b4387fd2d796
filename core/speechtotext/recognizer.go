package speechtotext

import "context"

// Recognizer starts listening attempts. Only one attempt per recognizer is
// expected to be outstanding; implementations stop the previous attempt when a
// new one starts.
type Recognizer interface {
	Listen(ctx context.Context, opts ...ListenOption) (Attempt, error)
}

// Attempt is a single listening attempt. Stop is idempotent.
type Attempt interface {
	Stop() error
}
