// Package diag assembles and renders the diagnostic dump spec.md §6
// names: per-mediator state, event-history rings, current proxy
// state, shard instance counters, and agent records.
package diag

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

// RadioDump is one mediator's current decision and recent history.
type RadioDump struct {
	Radio   string   `json:"radio"`
	Enabled bool     `json:"enabled"`
	Reason  string   `json:"reason"`
	History []string `json:"history"`
}

// ProxyDump is the companion proxy shard's current summary.
type ProxyDump struct {
	State          string `json:"state"`
	ShardInstances int    `json:"shard_instances"`
}

// AgentDump is a single network agent record.
type AgentDump struct {
	ID      string `json:"id"`
	Radio   string `json:"radio"`
	Metered bool   `json:"metered"`
	Score   int    `json:"score"`
	State   string `json:"state"`
	Reason  string `json:"reason"`
	Pending bool   `json:"pending_teardown"`
}

// Dump is the full diagnostic snapshot.
type Dump struct {
	Radios []RadioDump `json:"radios"`
	Proxy  ProxyDump   `json:"proxy"`
	Agents []AgentDump `json:"agents"`
}

// Provider supplies a point-in-time Dump. Implementations typically
// close over the live mediator workers, the proxy shard, and the
// network agent registry; Provider keeps this package decoupled from
// all of those concrete types.
type Provider interface {
	Dump() Dump
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func() Dump

// Dump implements Provider.
func (f ProviderFunc) Dump() Dump { return f() }

const textTemplate = `connectivity supervisor dump
=============================
{{range .Radios}}
radio {{.Radio}}: enabled={{.Enabled}} reason={{.Reason}}
  history:
{{range .History}}    - {{.}}
{{end}}{{end}}
proxy: state={{.Proxy.State}} shard_instances={{.Proxy.ShardInstances}}

agents:
{{range .Agents}}  - id={{.ID}} radio={{.Radio}} metered={{.Metered}} score={{.Score}} state={{.State}} reason={{.Reason}} pending_teardown={{.Pending}}
{{end}}`

var tmpl = template.Must(template.New("dump").Parse(textTemplate))

// RenderText renders the dump as the plain-text format spec.md §6 calls
// the "text dump endpoint".
func RenderText(d Dump) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("diag: render text dump: %w", err)
	}
	return buf.String(), nil
}

// RenderJSON renders the dump as indented JSON for the API surface.
func RenderJSON(d Dump) ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("diag: render json dump: %w", err)
	}
	return b, nil
}
