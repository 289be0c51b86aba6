// Package maxbridge connects Max/MSP patches to LLM tooling.
//
// The module is organized around three cores:
//
//   - orchestrator: the central router. Messages between the
//     intelligence, execution, interaction, and system channels pass
//     through a bounded priority-admission queue drained by a fixed
//     worker pool. The orchestrator also tracks registered components,
//     selects execution technologies, and manages core service
//     connections.
//
//   - state: the entity model. A Session owns Patches; Patches own
//     MaxObjects, Parameters, and Connections; GlobalSettings ride on
//     the session. Values cross the wire as a tagged union that keeps
//     integers and floats distinct across JSON round trips.
//
//   - statesync: the synchronization engine. It applies typed change
//     events to the model, keeps a bounded event history, answers full
//     and differential sync requests, resolves conflicts between
//     snapshots by timestamp or priority, and persists the session to
//     disk.
//
// Transport is WebSocket: transport/websocket exchanges JSON frames of
// the form {"address": "/max/...", "args": [...]}, dispatched through
// an OSC-style address pattern registry (transport). The security
// package gates admission with message size, rate, port, and command
// policies. cmd/maxbridge assembles the daemon.
package maxbridge
