/*
Package offer implements offer evaluation and acceptance: matching a pod's
resource requirement against incoming offers and committing the resulting
operations through the driver.

# Evaluation

Evaluator.Evaluate walks the offer batch in arrival order and, for each
offer, checks the placement rules, then tries to satisfy every task's
resource asks from a pool built over that offer's resources. Resources
already reserved for the framework's role are consumed before unreserved
ones. Missing persistent volumes produce RESERVE and CREATE recommendations
ahead of the LAUNCH. The first offer that fully satisfies the requirement
wins; evaluation never emits a partial plan.

A requirement flagged Permanent (destructive recovery) additionally tears
down the pod's old volumes on the chosen offer: DESTROY and UNRESERVE
recommendations precede the fresh RESERVE, CREATE, and LAUNCH.

# Acceptance

Accepter.Accept groups recommendations by offer id and submits one accept
call per offer with the operations in recommendation order. Registered
Recorders then see each (operation, offer) pair; PersistentRecorder uses
this to store launched TaskInfos. Recorder failures are logged and do not
roll back the accept: once the driver call returned, the cluster manager's
view is authoritative.

# Cleanup

Cleaner scans leftover offers for reservations and persistent volumes that
no stored task expects and recommends releasing them. The scheduler runs
this pass after plan dispatch in every offer cycle, so reservations
orphaned by task relocation are eventually returned to the cluster.
*/
package offer
