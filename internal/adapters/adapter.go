// Package adapters translates engine-specific requests into Actions. Each
// adapter owns the honest mapping of its domain onto urgency, value and
// reversibility; the classifier trusts those flags.
package adapters

import (
	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/idgen"
)

// Adapter is implemented by every engine adapter.
type Adapter interface {
	Engine() domain.Engine
}

type base struct {
	factory *domain.ActionFactory
}

func newBase(factory *domain.ActionFactory) base {
	if factory == nil {
		factory = domain.NewActionFactory(idgen.Default{}, clock.Real)
	}
	return base{factory: factory}
}
