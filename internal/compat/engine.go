// Package compat decides which environment variables must be injected before
// launching a game executable, based on independent, composable rules.
package compat

import (
	"log/slog"
	"runtime"
	"sort"

	"gamedock/internal/logging"
)

// Context describes the launch situation a rule inspects.
type Context struct {
	ExecutablePath string
	// UseWine reports whether a translation layer will run the executable.
	UseWine bool
	// HostOS is runtime.GOOS unless overridden for tests.
	HostOS string
}

// Rule is a pure predicate plus the environment it contributes when it fires.
type Rule struct {
	ID          string
	Name        string
	Description string
	Applies     func(Context) bool
	Env         map[string]string
}

// Engine evaluates every registered rule and merges their contributions.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

// NewEngine returns an engine loaded with the built-in rules.
func NewEngine(logger *slog.Logger) *Engine {
	return NewEngineWithRules(logger, builtinRules())
}

// NewEngineWithRules returns an engine with an explicit rule set.
func NewEngineWithRules(logger *slog.Logger, rules []Rule) *Engine {
	return &Engine{
		rules:  rules,
		logger: logging.NewComponentLogger(logger, "compat"),
	}
}

// Overrides evaluates all rules against the executable and context, returning
// the merged environment and the names of the rules that fired. Every rule is
// evaluated; later rules win on key conflicts.
func (e *Engine) Overrides(executablePath string, ctx Context) (map[string]string, []string) {
	ctx.ExecutablePath = executablePath
	if ctx.HostOS == "" {
		ctx.HostOS = runtime.GOOS
	}

	env := make(map[string]string)
	var fired []string
	for _, rule := range e.rules {
		if rule.Applies == nil || !rule.Applies(ctx) {
			continue
		}
		fired = append(fired, rule.Name)
		for key, value := range rule.Env {
			env[key] = value
		}
	}

	if len(fired) > 0 {
		sort.Strings(fired)
		e.logger.Debug("compatibility rules fired",
			logging.String("executable", executablePath),
			logging.Int("rules", len(fired)),
		)
	}
	return env, fired
}
