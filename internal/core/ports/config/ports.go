package configports

import (
	"context"

	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
)

type Loader interface {
	Load(ctx context.Context) (configdomain.Snapshot, error)
	Name() string
}
