// Package core contains the web monetization domain contracts and the grant
// lifecycle manager: negotiation of interactive spending grants, token
// rotation, and switching between the recurring and one-time grant slots.
// Higher-level packages (monetization, command, store) depend on this
// package; core must not depend on them.
package core
