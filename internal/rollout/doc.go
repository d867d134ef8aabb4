// Package rollout runs in-place deployments onto the hosts behind a target
// group. Hosts are updated one at a time: deregistered and drained, given
// the new revision, registered again and awaited until healthy. A host is
// only taken down while the remaining healthy hosts stay at or above the
// minimum-healthy-hosts floor; otherwise the rollout pauses, and it fails
// when the floor cannot be met within the pause timeout.
package rollout
