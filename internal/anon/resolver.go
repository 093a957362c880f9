package anon

import (
	"pathscrub/internal/origin"
)

// resolver anonymizes the origins returned by another resolver.
type resolver struct {
	inner origin.Resolver
	anon  *Anonymizer
}

func (r resolver) Name() string { return r.inner.Name() }

func (r resolver) Resolve(importPath string) (*origin.Origin, error) {
	o, err := r.inner.Resolve(importPath)
	if err != nil || o == nil {
		return o, err
	}
	out := *o
	out.Dir = r.anon.Classify(o.Dir)
	if o.Files != nil {
		out.Files = make([]string, len(o.Files))
		for i, f := range o.Files {
			out.Files[i] = r.anon.Classify(f)
		}
	}
	return &out, nil
}

// WrapResolver returns a resolver whose origins are anonymized.
func (a *Anonymizer) WrapResolver(r origin.Resolver) origin.Resolver {
	return resolver{inner: r, anon: a}
}

// WrapChain wraps every entry of chain.
func (a *Anonymizer) WrapChain(chain origin.Chain) origin.Chain {
	out := make(origin.Chain, len(chain))
	for i, r := range chain {
		out[i] = a.WrapResolver(r)
	}
	return out
}

// WrapResolvers wraps every entry of chain with the context's anonymizer.
func (c *Context) WrapResolvers(chain origin.Chain) origin.Chain {
	return c.Anonymizer().WrapChain(chain)
}
