package driven

import (
	"context"

	"github.com/custodia-labs/lexcheck/internal/core/domain"
)

// Notifier delivers job events to an outside party.
// Delivery is best effort; callers log errors and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}
