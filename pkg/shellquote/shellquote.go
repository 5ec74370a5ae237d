// Package shellquote renders command lines that can be pasted into a POSIX shell.
package shellquote

import "strings"

// safeRunes never need quoting in bash or zsh.
const safeRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-"

// Quote returns arg unchanged when it is shell-safe, otherwise a double-quoted form
// with \ " $ ` escaped and control characters spelled out.
func Quote(arg string) string {
	if arg == "" {
		return `""`
	}

	if !strings.ContainsFunc(arg, func(r rune) bool { return !strings.ContainsRune(safeRunes, r) }) {
		return arg
	}

	var b strings.Builder

	b.Grow(len(arg) + 2) //nolint:mnd
	b.WriteByte('"')

	for _, r := range arg {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// Join quotes bin and args and joins them with single spaces.
func Join(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, Quote(bin))

	for _, arg := range args {
		parts = append(parts, Quote(arg))
	}

	return strings.Join(parts, " ")
}
