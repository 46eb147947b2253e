// Package rules holds the built-in rule plugins. Each rule is a factory
// registered under a stable name; the runtime's config selects which ones
// run.
package rules

import (
	"github.com/hauntsaninja/slackreact/rule"
)

// RegisterAll adds every built-in rule to the registry in a stable order.
func RegisterAll(r *rule.Registry) error {
	builtins := []struct {
		name    string
		factory rule.Factory
	}{
		{"are_you_listening", NewAreYouListening},
		{"die_roll", NewDieRoll},
		{"love_me", NewLoveMe},
		{"email", NewEmail},
	}
	for _, b := range builtins {
		if err := r.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}
