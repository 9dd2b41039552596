// Package gameconfig persists per-game launch settings: the chosen executable,
// wine usage, extra arguments, locale, and accumulated play time.
package gameconfig
