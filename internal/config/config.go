// Package config loads an agent's node identity and per-channel policy
// from an INI file, grounded on pkg/od/parser_v1.go's ini.Load /
// Sections() / section.Key() usage.
package config

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// Agent is the [agent] section: this node's identity and the shared
// active table's capacity.
type Agent struct {
	LocalNode           uint64
	LocalService        uint64
	ActiveTableCapacity int
	StorageDir          string // empty selects the RAM-backed store
}

// Channel is one [channel "name"] section: a bundle channel's policy,
// matching engine.Config one field at a time so this package stays
// independent of pkg/engine's import graph.
type Channel struct {
	Name               string
	Destination        uint64
	DestinationService uint64
	Lifetime           uint64
	Originate          bool
	AllowFragmentation bool
	RequestCustody     bool
	IntegrityCheck     bool
	MaxBundleLength    int
	ProcAdminOnly      bool
	CLA                string
	CLAChannel         string
}

// File is a parsed configuration file: one agent identity and the
// channels defined alongside it.
type File struct {
	Agent    Agent
	Channels []Channel
}

// Load parses path (an INI file, or anything gopkg.in/ini.v1 accepts)
// into a File.
func Load(path string) (*File, error) {
	raw, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	f := &File{}
	agentSection, err := raw.GetSection("agent")
	if err != nil {
		return nil, fmt.Errorf("config: missing [agent] section: %w", err)
	}
	f.Agent.LocalNode = mustUint(agentSection.Key("local_node"))
	f.Agent.LocalService = mustUint(agentSection.Key("local_service"))
	f.Agent.ActiveTableCapacity = int(agentSection.Key("active_table_capacity").MustUint(1024))
	f.Agent.StorageDir = agentSection.Key("storage_dir").String()

	for _, section := range raw.Sections() {
		channelName, ok := parseChannelSection(section.Name())
		if !ok {
			continue
		}
		ch := Channel{
			Name:               channelName,
			Destination:        mustUint(section.Key("destination")),
			DestinationService: section.Key("destination_service").MustUint(0),
			Lifetime:           section.Key("lifetime").MustUint(0),
			Originate:          section.Key("originate").MustBool(false),
			AllowFragmentation: section.Key("allow_fragmentation").MustBool(false),
			RequestCustody:     section.Key("request_custody").MustBool(false),
			IntegrityCheck:     section.Key("integrity_check").MustBool(false),
			MaxBundleLength:    section.Key("max_bundle_length").MustInt(4096),
			ProcAdminOnly:      section.Key("proc_admin_only").MustBool(false),
			CLA:                section.Key("cla").String(),
			CLAChannel:         section.Key("cla_channel").String(),
		}
		f.Channels = append(f.Channels, ch)
	}
	return f, nil
}

// parseChannelSection recognizes section names of the form
// `channel "name"` and returns the inner name.
func parseChannelSection(name string) (string, bool) {
	const prefix = `channel "`
	if len(name) < len(prefix)+1 || name[:len(prefix)] != prefix || name[len(name)-1] != '"' {
		return "", false
	}
	return name[len(prefix) : len(name)-1], true
}

func mustUint(key *ini.Key) uint64 {
	v, err := strconv.ParseUint(key.Value(), 0, 64)
	if err != nil {
		return 0
	}
	return v
}
