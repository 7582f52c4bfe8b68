// Package monetization runs the per-tab payment hierarchy: a Registry of
// PaymentManagers (one per tab), each owning PaymentStreams (one per frame)
// of PaymentSessions (one per monetized link). Sessions share the active
// grant's token through the grant lifecycle service and pay continuously on a
// fixed tick, or in one shot through Pay.
package monetization
