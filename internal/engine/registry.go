package engine

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registry resolves a format name or file extension to its handler. It is
// populated during process registration and treated as read-only afterward;
// the lock only guards against misuse during that phase.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]FormatHandler
	byExt   map[string]FormatHandler
	ordered []FormatHandler
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byName: make(map[string]FormatHandler),
		byExt:  make(map[string]FormatHandler),
		logger: logger,
	}
}

// Register inserts handler under its format name (case-insensitive) and every
// extension it reports. Re-registering an existing key overwrites it, last
// registration wins; collisions are logged so they stay visible.
func (r *Registry) Register(handler FormatHandler) {
	name := strings.ToLower(handler.FormatName())

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.byName[name]; ok {
		r.logger.Warn("format already registered, replacing",
			zap.String("format", name),
			zap.Strings("previous_extensions", previous.Extensions()))
		r.ordered = slices.DeleteFunc(r.ordered, func(h FormatHandler) bool {
			return strings.ToLower(h.FormatName()) == name
		})
	}

	r.byName[name] = handler
	r.ordered = append(r.ordered, handler)

	for _, ext := range handler.Extensions() {
		ext = strings.ToLower(ext)
		if previous, ok := r.byExt[ext]; ok && strings.ToLower(previous.FormatName()) != name {
			r.logger.Warn("extension already registered, replacing",
				zap.String("extension", ext),
				zap.String("previous_format", previous.FormatName()),
				zap.String("format", name))
		}
		r.byExt[ext] = handler
	}
}

// ResolveByFormat returns the handler registered under name, case-insensitively.
func (r *Registry) ResolveByFormat(name string) (FormatHandler, error) {
	r.mu.RLock()
	handler, ok := r.byName[strings.ToLower(name)]
	available := r.formatsLocked()
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownFormatError{Format: name, Available: available}
	}
	return handler, nil
}

// ResolveByExtension resolves path by its file extension. Compound suffixes
// like ".tar.gz" are tried before the single trailing suffix, since naive
// extension extraction would only capture ".gz".
func (r *Registry) ResolveByExtension(path string) (FormatHandler, bool) {
	base := strings.ToLower(filepath.Base(path))

	last := filepath.Ext(base)
	if last == "" {
		return nil, false
	}
	second := filepath.Ext(strings.TrimSuffix(base, last))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if second != "" {
		if handler, ok := r.byExt[second+last]; ok {
			return handler, true
		}
	}
	handler, ok := r.byExt[last]
	return handler, ok
}

// ResolveByContent returns the first registered handler whose ValidSource
// check accepts path, in registration order. Used as a fallback when a
// request specifies only a path.
func (r *Registry) ResolveByContent(path string) (FormatHandler, bool) {
	r.mu.RLock()
	ordered := slices.Clone(r.ordered)
	r.mu.RUnlock()

	for _, handler := range ordered {
		if handler.ValidSource(path) {
			return handler, true
		}
	}
	return nil, false
}

// Formats returns the sorted registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formatsLocked()
}

func (r *Registry) formatsLocked() []string {
	formats := lo.Keys(r.byName)
	slices.Sort(formats)
	return formats
}

// HandlerCount returns the number of registered handlers.
func (r *Registry) HandlerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
