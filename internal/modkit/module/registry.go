package module

import (
	"sort"
	"sync"
)

// The registry is the process-wide inventory of mounted modules. Mains
// register every module they bring up; health reporting reads it back
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register records a module's ports under its name
func Register(name string, ports any) {
	mu.Lock()
	reg[name] = ports
	mu.Unlock()
}

// PortsAs looks up a registered port set by module name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Names lists the registered modules in stable order
func Names() []string {
	mu.RLock()
	out := make([]string, 0, len(reg))
	for name := range reg {
		out = append(out, name)
	}
	mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reset clears the registry between tests
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
