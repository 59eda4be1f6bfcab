package codec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options configures backend construction through ByName.
type Options struct {
	Logger hclog.Logger
}

var backends = map[string]func(Options) Encoder{}

func register(name string, ctor func(Options) Encoder) {
	backends[name] = ctor
}

// ByName returns the backend registered under name. The empty string
// selects Default.
func ByName(name string, opts Options) (Encoder, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default(), nil
	}
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("codec: unknown backend %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return ctor(opts), nil
}

// Names lists the registered backends in sorted order.
func Names() []string {
	names := make([]string, 0, len(backends))
	for n := range backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
