// Package hooking lets observers, such as tracers and wave recorders,
// attach to drivers and kernels without them knowing the observers.
package hooking

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// A HookPos names the place where a hook is invoked, such as the start of a
// transaction or a signal change.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookCtx is what a hook receives when it is invoked.
type HookCtx struct {
	// Domain is the object that invokes the hook.
	Domain Hookable

	// Pos tells where in the domain the hook is invoked.
	Pos *HookPos

	// Item is the subject of the event, for example a task or a signal.
	Item any

	// Detail carries extra information that depends on Pos.
	Detail any
}

// Hookable is implemented by the objects that accept hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// A Hook is invoked by the hookables it is attached to.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase keeps the hooks of a hookable object. It is meant to be
// embedded.
type HookableBase struct {
	hooks []Hook
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	return &HookableBase{}
}

// NumHooks returns how many hooks are attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks in the order they were attached.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	if h.indexOf(hook) >= 0 {
		log.Panicf("hooking: hook %s is already attached", describe(hook))
	}

	h.hooks = append(h.hooks, hook)
}

// RemoveHook detaches a hook. It returns false if the hook was not
// attached.
func (h *HookableBase) RemoveHook(hook Hook) bool {
	i := h.indexOf(hook)
	if i < 0 {
		return false
	}

	h.hooks = append(h.hooks[:i:i], h.hooks[i+1:]...)

	return true
}

// InvokeHook calls every attached hook with ctx.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

func (h *HookableBase) indexOf(hook Hook) int {
	for i, existing := range h.hooks {
		if existing == hook {
			return i
		}
	}

	return -1
}

func describe(hook Hook) string {
	return fmt.Sprintf("%T(%p)", hook, hook)
}
