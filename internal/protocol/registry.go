package protocol

import (
	"fmt"
	"math/rand"
	"time"

	"sybil/internal/models"
	"sybil/internal/reasoner"
)

// Registry maps protocol kinds to their implementations. The agent
// variant needs a reasoner; the baselines are self-contained.
type Registry struct {
	impls map[models.ProtocolKind]Protocol
}

func NewRegistry(r reasoner.Reasoner) *Registry {
	impls := map[models.ProtocolKind]Protocol{
		models.ProtocolRandom:    &Random{Rand: rand.New(rand.NewSource(time.Now().UnixNano()))},
		models.ProtocolHeuristic: &Heuristic{},
		models.ProtocolHuman:     &Human{},
	}
	if r != nil {
		impls[models.ProtocolAgent] = &Agent{Reasoner: r}
	}
	return &Registry{impls: impls}
}

func (r *Registry) For(kind models.ProtocolKind) (Protocol, error) {
	if r == nil {
		return nil, fmt.Errorf("protocol registry not configured")
	}
	impl, ok := r.impls[kind]
	if !ok {
		return nil, fmt.Errorf("no implementation for protocol kind %q", kind)
	}
	return impl, nil
}
