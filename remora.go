/*package remora keeps the particles of a distributed simulation consistent
across a domain-decomposed periodic box. Each rank owns the particles inside
its sub-box, hands particles that cross a boundary to the neighboring rank,
and keeps a halo of read-only "ghost" copies of nearby foreign particles so
that force evaluation near a boundary sees complete neighborhoods.

Almost all of the heavy lifting is done by the subpackages of lib/:

    lib/geom      global box, decomposition grid, sub-box ownership
    lib/store     columnar particle arrays and the reverse tag table
    lib/migrate   particle migration between neighboring ranks
    lib/ghost     ghost-halo construction and refresh
    lib/comm      point-to-point transport between ranks
    lib/bond      bond tables consumed by ghost planning
    lib/snapshot  compressed per-rank checkpoints
    lib/config    run configuration files
    lib/stats     load-balance and exchange-volume diagnostics

Force evaluators and integrators are external: they read the particle store
(including the ghost region) and write only to the owned prefix.
*/
package remora

var (
	// Version differentiates between breaking changes to the snapshot and
	// wire formats.
	Version uint64 = 0x1
)
