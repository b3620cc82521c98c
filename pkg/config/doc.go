/*
Package config manages service specification generations and the pointer to
the currently targeted generation.

Each accepted configuration change stores the full serialized ServiceSpec
under a fresh UUID (the config target id) in the state store's property
space, then atomically repoints the target. Steps carry the target id they
were created against; a task reporting a different target id than its step's
triggers a rollout reset of that step.

# Update handshake

Updater.Update implements the UpdateResult handshake:

 1. Structural validation of the proposed spec.
 2. If the proposal is byte-identical to the current target, no-op.
 3. Change validators run against (current, proposed). A rejected change
    leaves the current target in effect and surfaces the errors.
 4. An accepted change stores a new generation and targets it.

The default validators mirror what a resource-reserving framework can
tolerate: TaskSetsCannotShrink (removing pods or tasks would strand
reservations) and TaskVolumesCannotChange (volumes are bound to
reservations that outlive config generations).

Validation failures at startup are fatal to the process; the scheduler maps
them to its initialization-failure exit code.
*/
package config
