// Package engine implements DAG-based pipeline execution for compliance
// requests.
//
// Architecture:
//
// graph.go        - Stage graph definition (edges, routers, terminals, validation)
// orchestrator.go - Traversal loop, state ownership, delta merging, telemetry
// pipeline.go     - Wires the standard compliance graph over its collaborators
// runtime/        - Stage contract (Stage, StageResult, Delta)
// stages/         - The eight pipeline stages, from screening to response
//
// The engine owns the request state for the lifetime of a run. Stages receive
// snapshots and publish partial updates; the orchestrator merges them back in
// under the per-field policy the domain types document and appends one audit
// entry per executed stage. Stages never abort a run: collaborator failures
// surface as degraded results and the traversal always reaches a terminal.
package engine
