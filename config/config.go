// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package config loads the instance configuration of spec §6
// ("Initialization configuration") from YAML, the ambient configuration
// mechanism this module uses in place of the teacher's flag-only
// examples (a long-running daemon needs a file, not just CLI flags).
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/unicens-go/unicens/model"
)

// General holds the general.* options of spec §6.
type General struct {
	InicWatchdogEnabled bool `yaml:"inic_watchdog_enabled"`
}

// Supv holds the supv.* options of spec §6. NodesListPath/RoutesListPath
// may be a single file or a doublestar glob (e.g. "nodes.d/**/*.yaml")
// expanded and merged by LoadNodeCatalog/LoadRouteList.
type Supv struct {
	Mode            string `yaml:"mode"`
	PacketBandwidth uint16 `yaml:"packet_bw"`
	ProxyChannelBW  uint16 `yaml:"proxy_channel_bw"`
	NodesListPath   string `yaml:"nodes_list"`
	RoutesListPath  string `yaml:"routes_list"`
}

// NetworkStatusCfg holds the network.status.* options of spec §6.
type NetworkStatusCfg struct {
	NotificationMask uint8 `yaml:"notification_mask"`
}

// Network groups network.* configuration.
type Network struct {
	Status NetworkStatusCfg `yaml:"status"`
}

// InitData is the root of the YAML configuration document, mirroring
// spec §6's init_data structure.
type InitData struct {
	General General `yaml:"general"`
	Supv    Supv    `yaml:"supv"`
	Network Network `yaml:"network"`
}

// DefaultPacketBandwidth is supv.packet_bw's documented default
// (spec §6).
const DefaultPacketBandwidth = 52

// Load reads and validates an InitData document from path.
func Load(path string) (*InitData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var data InitData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if data.Supv.PacketBandwidth == 0 {
		data.Supv.PacketBandwidth = DefaultPacketBandwidth
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate checks the structural constraints spec §6 lists: the initial
// mode may not be Diagnosis or Programming.
func (d *InitData) Validate() error {
	mode := model.ParseSupervisorMode(d.Supv.Mode)
	switch mode {
	case model.ModeDiagnosis, model.ModeProgramming:
		return model.NewError(model.ParamError, "supv.mode %q is rejected as an initial mode", d.Supv.Mode)
	case model.ModeNone:
		return model.NewError(model.ParamError, "supv.mode %q is not a recognized mode", d.Supv.Mode)
	}
	return nil
}

// nodeFragment and routeFragment are the on-disk shapes merged by
// LoadNodeCatalog/LoadRouteList; kept distinct from model types so the
// wire/file format can evolve independently of in-memory types.
type nodeFragment struct {
	Nodes []nodeEntry `yaml:"nodes"`
}

type nodeEntry struct {
	NodeAddress  uint16 `yaml:"node_address"`
	NodePosition uint16 `yaml:"node_position"`
	GroupAddress uint16 `yaml:"group_address"`
	MAC          string `yaml:"mac"`
	NumPorts     uint8  `yaml:"num_ports"`
	Available    bool   `yaml:"available"`
	Programmable bool   `yaml:"programmable"`
}

// LoadNodeCatalog expands the doublestar glob pattern, merges every
// matching YAML fragment's `nodes:` list (sorted by filename for
// reproducibility), and returns the resulting model.NodeCatalog. This is
// how a fleet's node catalog can be split across nodes.d/*.yaml
// fragments instead of one monolithic file.
func LoadNodeCatalog(pattern string) (*model.NodeCatalog, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config: expanding glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var records []model.NodeRecord
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		var frag nodeFragment
		if err := yaml.Unmarshal(raw, &frag); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		for _, e := range frag.Nodes {
			mac, err := parseMAC(e.MAC)
			if err != nil {
				return nil, fmt.Errorf("config: %s: %w", path, err)
			}
			sig := &model.Signature{
				NodeAddress:  model.NodeAddress(e.NodeAddress),
				NodePosition: e.NodePosition,
				GroupAddress: e.GroupAddress,
				MAC:          mac,
				NumPorts:     e.NumPorts,
			}
			records = append(records, model.NodeRecord{
				Signature:    sig,
				Available:    e.Available,
				Programmable: e.Programmable,
			})
		}
	}
	return model.NewNodeCatalog(records), nil
}

// routeFragment and routeEntry are the on-disk shapes merged by
// LoadRouteList.
type routeFragment struct {
	Routes []routeEntry `yaml:"routes"`
}

type routeEntry struct {
	Source routeEndpoint `yaml:"source"`
	Sink   routeEndpoint `yaml:"sink"`
}

type routeEndpoint struct {
	NodeAddress         uint16 `yaml:"node_address"`
	StreamingPortHandle uint16 `yaml:"streaming_port_handle"`
	SyncConnHandle      uint16 `yaml:"sync_conn_handle"`
}

// LoadRouteList expands pattern the same way LoadNodeCatalog does and
// returns the static route definitions a routemanager.Manager
// implementation builds/tears down at runtime. Source/Sink endpoints
// start Built=false and State=model.RouteIdle; it is the routemanager's
// job to drive them from there (spec §3's ownership rule), so this
// loader only produces the initial, unbuilt topology.
func LoadRouteList(pattern string) ([]*model.Route, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("config: expanding glob %q: %w", pattern, err)
	}
	sort.Strings(matches)

	var routes []*model.Route
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		var frag routeFragment
		if err := yaml.Unmarshal(raw, &frag); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		for _, e := range frag.Routes {
			routes = append(routes, &model.Route{
				Source: model.Endpoint{
					NodeAddress:         model.NodeAddress(e.Source.NodeAddress),
					StreamingPortHandle: e.Source.StreamingPortHandle,
					SyncConnHandle:      e.Source.SyncConnHandle,
				},
				Sink: model.Endpoint{
					NodeAddress:         model.NodeAddress(e.Sink.NodeAddress),
					StreamingPortHandle: e.Sink.StreamingPortHandle,
					SyncConnHandle:      e.Sink.SyncConnHandle,
				},
				State: model.RouteIdle,
			})
		}
	}
	return routes, nil
}

func parseMAC(s string) (model.MAC48, error) {
	var mac model.MAC48
	if s == "" {
		return mac, nil
	}
	var b [6]int
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x", &b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	if err != nil || n != 6 {
		return mac, fmt.Errorf("invalid mac %q", s)
	}
	for i, v := range b {
		mac[i] = byte(v)
	}
	return mac, nil
}
