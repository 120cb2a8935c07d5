// Package tghtml builds Telegram HTML-parse-mode text safely.
//
// Telegram's HTML mode rejects messages with unbalanced or unescaped
// markup, so all user-facing strings (product titles, option values)
// must go through Esc before being embedded in a message.
package tghtml
