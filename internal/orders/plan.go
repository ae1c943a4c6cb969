package orders

import (
	"strings"

	"github.com/angelmondragon/qrcatalog-backend/pkg/enums"
)

// Plan is every document the fan-out will write, fixed before the first write so a
// repair pass can replay it byte for byte.
type Plan struct {
	Order         Order        `json:"order"`
	CustomerEmail string       `json:"customer_email"`
	Groups        []StoreGroup `json:"groups"`
}

// Step is one write of the plan.
type Step struct {
	Kind    enums.FanoutStep
	StoreID string
}

// Key identifies the step inside the journal.
func (s Step) Key() string {
	if s.StoreID == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.StoreID
}

// ParseStepKey reverses Key.
func ParseStepKey(key string) (Step, error) {
	kind, storeID, _ := strings.Cut(key, ":")
	parsed, err := enums.ParseFanoutStep(kind)
	if err != nil {
		return Step{}, err
	}
	return Step{Kind: parsed, StoreID: storeID}, nil
}

// Steps lists the writes in execution order: order, buyer index, one per store, cart.
func (p *Plan) Steps() []Step {
	steps := make([]Step, 0, len(p.Groups)+3)
	steps = append(steps, Step{Kind: enums.FanoutStepOrder}, Step{Kind: enums.FanoutStepUserRef})
	for _, g := range p.Groups {
		steps = append(steps, Step{Kind: enums.FanoutStepStoreRef, StoreID: g.StoreID})
	}
	return append(steps, Step{Kind: enums.FanoutStepCartClear})
}

func (p *Plan) userRef() UserOrderRef {
	return UserOrderRef{Total: p.Order.Total, CreatedAt: p.Order.CreatedAt}
}

func (p *Plan) storeRef(storeID string) (StoreOrderRef, bool) {
	for _, g := range p.Groups {
		if g.StoreID != storeID {
			continue
		}
		return StoreOrderRef{
			UserID:        p.Order.UserID,
			CustomerEmail: p.CustomerEmail,
			Items:         g.Items,
			Total:         g.Subtotal,
			Status:        p.Order.Status,
			CreatedAt:     p.Order.CreatedAt,
		}, true
	}
	return StoreOrderRef{}, false
}

func (p *Plan) productIDs() []string {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(p.Order.Items))
	for _, item := range p.Order.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
