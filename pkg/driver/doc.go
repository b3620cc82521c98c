/*
Package driver defines the semantic boundary between the plan engine and the
cluster resource manager.

Driver is the outbound capability surface: accept and decline offers, kill
tasks, request task reconciliation, and suppress or revive offer delivery.
Handler is the inbound callback surface the resource manager invokes:
registration, offer batches, rescinds, status updates, and errors.

Only the semantic surface is defined here. The wire encoding of the
underlying RPC protocol is deliberately outside this module; a binding that
speaks the actual protocol implements Driver and dispatches callbacks into a
Handler. Two reference implementations ship with the package:

  - MockDriver records every outbound call for inspection. Tests drive the
    engine end-to-end by invoking Handler callbacks directly and asserting
    on the recorded accepts, declines, kills, and reconcile requests.
  - LogDriver logs outbound calls and does nothing, so the binary runs
    without a cluster attached.

Callbacks arrive on the driver binding's own thread. Handler
implementations must hand work off to their own serial executor and return
promptly; blocking a callback stalls the binding's event loop.
*/
package driver
