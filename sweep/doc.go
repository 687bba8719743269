// Package sweep drives a seed sweep of simulation jobs through a capacity-limited
// cluster queue until every (config, scenario, seed) work item has a result artifact.
//
// # Reading Guide
//
// Start with these files:
//   - ladder.go: the timeout ladder and D-HH:MM time limit formatting
//   - workitem.go: work item identity, artifact paths, and job command lines
//   - controller.go: the tiered poll/sweep/advance loop
//
// # Architecture
//
// The sweep package defines the controller and the two small interfaces it
// depends on; implementations live in sub-packages:
//   - sweep/probe/: completion probes (filesystem, results database, in-memory)
//   - sweep/gate/: queue gates (squeue/sbatch CLI, slurmrestd REST, throttled wrapper)
//   - sweep/trace/: per-tier progress records and the end-of-run summary
//
// # Key Interfaces
//   - CompletionProbe: reports whether a work item's artifact exists
//   - QueueGate: reports queue occupancy and accepts job submissions
package sweep
