// Package slackreact is a rule-driven chat bot runtime. It keeps a
// persistent gateway connection alive, resolves ids to names through a
// per-connection directory snapshot, and evaluates a set of pluggable rules
// against every incoming event, posting whatever the rules produce.
//
// The packages split along the runtime's seams:
//
//   - event decodes socket frames into total-accessor events
//   - slack is the Web API client: calls, pagination, handshake, downloads
//   - directory holds the id↔name tables, swapped wholesale per connection
//   - rule defines the rule contract, the composition base, and the registry
//   - rules carries the built-in rule plugins
//   - dispatch fans each event out to every rule with bounded concurrency
//   - bot owns the socket, its heartbeat, and the reconnect cycle
//
// cmd/slackreact wires it all together behind a JSON config file.
package slackreact
