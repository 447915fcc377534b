package exec

import (
	"fmt"

	"github.com/franalgaba/grimoire-sub002/internal/eval"
)

// newEvalContext builds an eval.Context reflecting the current execution
// state. It sets no item/index; pipeline where/sort stages set Item, Index
// and HasItem on the returned context themselves.
func (c *Context) newEvalContext() *eval.Context {
	ec := eval.NewContext()
	ec.Bindings = c.Bindings.Snapshot()
	ec.Params = c.Params
	ec.Persistent = c.Persistent
	ec.Ephemeral = c.Ephemeral
	ec.Resolver = c.resolveVenue
	return ec
}

func (c *Context) resolveVenue(alias string) (eval.VenueInfo, error) {
	for _, a := range c.Spell.Aliases {
		if a.Alias == alias {
			return eval.VenueInfo{Alias: a.Alias, Chain: a.Chain, Address: a.Address}, nil
		}
	}
	return eval.VenueInfo{}, fmt.Errorf("unknown venue alias %q", alias)
}
