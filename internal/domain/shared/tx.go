package shared

import "context"

// Transactor runs fn inside one logical transaction. Repositories called with
// the context passed to fn take part in that transaction. A nested call joins
// the outer transaction. Returning an error from fn rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
