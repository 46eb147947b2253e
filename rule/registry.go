package rule

import (
	"fmt"
	"sync"

	"github.com/hauntsaninja/slackreact/errors"
)

// Factory constructs one rule instance with the runtime injected. Factories
// must not perform I/O; stateful setup belongs in the rule's Load.
type Factory func(rt Runtime) (Rule, error)

// Registry holds the rule factories available to a bot. Registration is
// explicit: callers register factories during initialization, and the bot
// builds instances from the registry at startup. There is no implicit
// self-registration side channel.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named rule factory. Registering the same name twice is an
// error.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.WrapInvalid(
			errors.New("rule name cannot be empty"), "Registry", "Register", "name validation")
	}
	if factory == nil {
		return errors.WrapInvalid(
			errors.New("factory cannot be nil"), "Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrDuplicateRule, name),
			"Registry", "Register", "duplicate check")
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered rule names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Build instantiates rules with the runtime injected. A nil or empty subset
// builds every registered rule in registration order; otherwise only the
// named rules, in the subset's order. Unknown names are an error.
func (r *Registry) Build(rt Runtime, subset []string) ([]Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := subset
	if len(names) == 0 {
		names = r.order
	}

	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		factory, exists := r.factories[name]
		if !exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrUnknownRule, name),
				"Registry", "Build", "factory lookup")
		}
		instance, err := factory(rt)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Registry", "Build", "construct "+name)
		}
		rules = append(rules, instance)
	}
	return rules, nil
}
