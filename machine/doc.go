// Package machine owns the per-machine lifecycle core: the reachability
// state machine, the health check engine and the secret provisioning
// protocol, all driven over a shared session channel.
//
// One Machine instance manages one remote host. Durable record slots live
// in the state store; parallelism across machines is the caller's job.
package machine
