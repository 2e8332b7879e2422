// Package events is the notification channel between the session registry
// and its hosts: focus changes, sessions becoming ready, and session errors.
package events
