// Package cadss wires together the cache and coherence modules into a
// runnable multiprocessor memory hierarchy: one cache.Controller and one
// coherence.Controller per processor, sharing a single bus.Interconnect.
//
// Neither module depends on this package or on each other's concrete
// types; System is the "driver" collaborator the core contracts describe
// but deliberately leave unimplemented, the same role SUPRAXCore plays for
// OutOfOrderScheduler, BranchPredictor, and Memory in the reference model
// this repository is built in the style of.
package cadss
