// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/unicens-go/unicens/model"
)

func TestLoadRejectsDiagnosisAsInitialMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.yaml")
	os.WriteFile(path, []byte("supv:\n  mode: Diagnosis\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for Diagnosis as initial mode")
	}
}

func TestLoadAppliesDefaultPacketBandwidth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.yaml")
	os.WriteFile(path, []byte("supv:\n  mode: Normal\n"), 0o644)

	data, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data.Supv.PacketBandwidth != DefaultPacketBandwidth {
		t.Fatalf("PacketBandwidth = %d, want default %d", data.Supv.PacketBandwidth, DefaultPacketBandwidth)
	}
}

func TestLoadNodeCatalogMergesFragments(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "nodes.d"), 0o755)
	os.WriteFile(filepath.Join(dir, "nodes.d", "a.yaml"), []byte(`
nodes:
  - node_address: 0x0401
    node_position: 1
    mac: "AA:BB:CC:DD:EE:01"
    num_ports: 1
    available: true
`), 0o644)
	os.WriteFile(filepath.Join(dir, "nodes.d", "b.yaml"), []byte(`
nodes:
  - node_address: 0x0402
    node_position: 2
    mac: "AA:BB:CC:DD:EE:02"
    num_ports: 2
    available: true
    programmable: true
`), 0o644)

	cat, err := LoadNodeCatalog(filepath.Join(dir, "nodes.d", "*.yaml"))
	if err != nil {
		t.Fatalf("LoadNodeCatalog: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cat.Len())
	}
	rec, ok := cat.ByAddress(0x0402)
	if !ok || !rec.Programmable {
		t.Fatalf("expected node 0x0402 to be found and programmable, got %+v ok=%v", rec, ok)
	}
}

func TestLoadRouteListMergesFragmentsAsUnbuilt(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "routes.d"), 0o755)
	os.WriteFile(filepath.Join(dir, "routes.d", "a.yaml"), []byte(`
routes:
  - source:
      node_address: 0x0401
      streaming_port_handle: 1
    sink:
      node_address: 0x0402
      streaming_port_handle: 2
`), 0o644)
	os.WriteFile(filepath.Join(dir, "routes.d", "b.yaml"), []byte(`
routes:
  - source:
      node_address: 0x0402
      streaming_port_handle: 3
    sink:
      node_address: 0x0403
      streaming_port_handle: 4
`), 0o644)

	routes, err := LoadRouteList(filepath.Join(dir, "routes.d", "*.yaml"))
	if err != nil {
		t.Fatalf("LoadRouteList: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("len(routes) = %d, want 2", len(routes))
	}
	for _, r := range routes {
		if r.Source.Built || r.Sink.Built {
			t.Fatalf("route endpoints must start unbuilt: %+v", r)
		}
		if r.State != model.RouteIdle {
			t.Fatalf("route state = %v, want RouteIdle", r.State)
		}
	}
	if routes[0].Source.NodeAddress != 0x0401 || routes[0].Sink.NodeAddress != 0x0402 {
		t.Fatalf("first route = %+v", routes[0])
	}
}
