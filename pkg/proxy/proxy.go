// Package proxy assigns proxy URLs to task targets.
package proxy

import "strings"

// Placeholder is the credential marker inside a proxy template. It is
// replaced with the target preview at resolution time, so upstream proxies
// that key sessions off the username get one session per target.
const Placeholder = "*****"

// Config selects the proxy templates for a run. Static templates take
// precedence over their API-sourced counterparts within the same address
// family.
type Config struct {
	Proxy        string
	ProxyIPv6    string
	ProxyAPI     string
	ProxyIPv6API string
	UseIPv6First bool
	Disabled     bool
}

// Enabled reports whether resolution can yield a proxy at all.
func (c Config) Enabled() bool {
	if c.Disabled {
		return false
	}
	return c.Proxy != "" || c.ProxyIPv6 != "" || c.ProxyAPI != "" || c.ProxyIPv6API != ""
}

func (c Config) ipv6Template() string {
	if c.ProxyIPv6 != "" {
		return c.ProxyIPv6
	}
	return c.ProxyIPv6API
}

func (c Config) ipv4Template() string {
	if c.Proxy != "" {
		return c.Proxy
	}
	return c.ProxyAPI
}

// Allocator resolves one proxy URL per target index.
type Allocator struct {
	cfg Config
}

func NewAllocator(cfg Config) *Allocator {
	return &Allocator{cfg: cfg}
}

// Resolve picks the template for the given target and substitutes the
// placeholder with preview. It returns "" when proxying is disabled or no
// template applies.
//
// With UseIPv6First set and templates for both families present, targets
// alternate by index parity: even indices get IPv6, odd indices IPv4.
func (a *Allocator) Resolve(index int, preview string) string {
	if a.cfg.Disabled {
		return ""
	}

	template := a.cfg.ipv4Template()
	if a.cfg.UseIPv6First {
		if v6 := a.cfg.ipv6Template(); v6 != "" {
			if template == "" || index%2 == 0 {
				template = v6
			}
		}
	}
	if template == "" {
		return ""
	}
	return strings.ReplaceAll(template, Placeholder, preview)
}
