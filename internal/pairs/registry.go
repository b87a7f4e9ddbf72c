// Package pairs implements the process-wide Pair Registry: a bidirectional
// map of (venue, local pair) <-> exchange symbol plus per-pair trading
// constraints. A single writer replaces a venue's whole map atomically;
// any number of readers traverse a snapshot concurrently.
package pairs

import (
	"regexp"
	"sync"

	"github.com/tradai/core/internal/errs"
)

type venueMap struct {
	pairToSymbol map[string]string
	symbolToPair map[string]string
	confs        map[string]PairConf // keyed by pair
}

// Registry is the process-wide pair registry. Construct it with New: the
// zero value has no venue map, so Register and RegisterPair panic on it.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]*venueMap
}

// New returns an empty Registry. The CLI and the tests each construct
// their own rather than sharing Default(), so no state bleeds across runs
// or cases.
func New() *Registry {
	return &Registry{venues: make(map[string]*venueMap)}
}

var defaultRegistry = New()

// Default returns the process-wide registry. It starts empty and holds
// only what callers Register into it. Components take a *Registry
// explicitly so tests can substitute their own.
func Default() *Registry { return defaultRegistry }

// Register installs (or atomically replaces) the full pair set for venue.
// A single writer swaps the venue's map wholesale; concurrent readers see
// either the old or the new map, never a partial one.
func (r *Registry) Register(venue string, confs []PairConf) {
	vm := &venueMap{
		pairToSymbol: make(map[string]string, len(confs)),
		symbolToPair: make(map[string]string, len(confs)),
		confs:        make(map[string]PairConf, len(confs)),
	}
	for _, c := range confs {
		vm.pairToSymbol[c.Pair] = c.Symbol
		vm.symbolToPair[c.Symbol] = c.Pair
		vm.confs[c.Pair] = c
	}
	r.mu.Lock()
	r.venues[venue] = vm
	r.mu.Unlock()
}

// RegisterPair adds or overwrites a single (pair, symbol) mapping with a
// zero-value PairConf, for quick wiring in tests.
func (r *Registry) RegisterPair(venue, pair, symbol string) {
	r.mu.Lock()
	vm, ok := r.venues[venue]
	if !ok {
		vm = &venueMap{
			pairToSymbol: make(map[string]string),
			symbolToPair: make(map[string]string),
			confs:        make(map[string]PairConf),
		}
		r.venues[venue] = vm
	}
	vm.pairToSymbol[pair] = symbol
	vm.symbolToPair[symbol] = pair
	if _, exists := vm.confs[pair]; !exists {
		vm.confs[pair] = PairConf{Venue: venue, Pair: pair, Symbol: symbol}
	}
	r.mu.Unlock()
}

// PairToSymbol resolves a local pair to its exchange-native symbol.
func (r *Registry) PairToSymbol(venue, pair string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vm, ok := r.venues[venue]
	if !ok {
		return "", errs.ErrExchangeNotInRegistry
	}
	symbol, ok := vm.pairToSymbol[pair]
	if !ok {
		return "", errs.ErrPairUnsupported
	}
	return symbol, nil
}

// SymbolToPair resolves an exchange-native symbol back to its local pair.
func (r *Registry) SymbolToPair(venue, symbol string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vm, ok := r.venues[venue]
	if !ok {
		return "", errs.ErrExchangeNotInRegistry
	}
	pair, ok := vm.symbolToPair[symbol]
	if !ok {
		return "", errs.ErrPairUnsupported
	}
	return pair, nil
}

// PairConf returns the constraints registered for (venue, pair).
func (r *Registry) PairConf(venue, pair string) (PairConf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vm, ok := r.venues[venue]
	if !ok {
		return PairConf{}, errs.ErrExchangeNotInRegistry
	}
	conf, ok := vm.confs[pair]
	if !ok {
		return PairConf{}, errs.ErrPairUnsupported
	}
	return conf, nil
}

// PairConfs returns every registered conf for venue.
func (r *Registry) PairConfs(venue string) ([]PairConf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vm, ok := r.venues[venue]
	if !ok {
		return nil, errs.ErrExchangeNotInRegistry
	}
	out := make([]PairConf, 0, len(vm.confs))
	for _, c := range vm.confs {
		out = append(out, c)
	}
	return out, nil
}

// FilterPairs returns the pairs on venue whose canonical "BASE_QUOTE" form
// matches any of the supplied regular expressions.
func (r *Registry) FilterPairs(venue string, patterns []string) ([]string, error) {
	regexes := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		regexes = append(regexes, re)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	vm, ok := r.venues[venue]
	if !ok {
		return nil, errs.ErrExchangeNotInRegistry
	}
	var out []string
	for pair := range vm.pairToSymbol {
		for _, re := range regexes {
			if re.MatchString(pair) {
				out = append(out, pair)
				break
			}
		}
	}
	return out, nil
}
