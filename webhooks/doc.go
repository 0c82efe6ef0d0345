// Package webhooks receives Acumatica push notifications and turns them into
// business event records.
//
// A notification is verified, parsed, classified by its query name and then
// handed to an optional EventSink. Publishing goes through a delivery ledger
// keyed by notification id so redelivered notifications are published once:
// pending/retry_ready -> processing -> processed|dead.
package webhooks
