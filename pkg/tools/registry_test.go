package tools

import "testing"

func TestRegistryGetResolvesAlias(t *testing.T) {
	reg := NewRegistry()
	reg.Register(echoTool("web_search"))
	reg.RegisterAlias("search", "web_search")

	if reg.Get("search") != reg.Get("web_search") {
		t.Fatalf("expected alias 'search' to resolve to the same tool as 'web_search'")
	}
	if !reg.Has("search") {
		t.Fatalf("expected Has to follow the alias too")
	}
}

func TestRegistryGetByGroupAndToolsInGroup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{Name: "a", Group: "memory"})
	reg.Register(&Tool{Name: "b", Group: "memory"})
	reg.Register(&Tool{Name: "c", Group: "tickets"})

	names := reg.ToolsInGroup("memory")
	if len(names) != 2 {
		t.Fatalf("expected 2 tools in group 'memory', got %v", names)
	}

	tools := reg.GetByGroup("tickets")
	if len(tools) != 1 || tools[0].Name != "c" {
		t.Fatalf("expected only tool 'c' in group 'tickets', got %+v", tools)
	}
}

func TestRegistryByTypeFiltersByToolType(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{Name: "builtin-1", Type: ToolTypeBuiltin})
	reg.Register(&Tool{Name: "bridge-1", Type: ToolTypeBridge})

	builtins := reg.ByType(ToolTypeBuiltin)
	if len(builtins) != 1 || builtins[0].Name != "builtin-1" {
		t.Fatalf("expected only the builtin tool, got %+v", builtins)
	}
}

func TestRegistryAllIsSortedByName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{Name: "zebra"})
	reg.Register(&Tool{Name: "apple"})
	reg.Register(&Tool{Name: "mango"})

	all := reg.All()
	if len(all) != 3 || all[0].Name != "apple" || all[1].Name != "mango" || all[2].Name != "zebra" {
		t.Fatalf("expected tools sorted by name, got %+v", all)
	}
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Tool{Name: "a", Group: "g"})

	clone := reg.Clone()
	clone.Register(&Tool{Name: "b", Group: "g"})

	if reg.Has("b") {
		t.Fatalf("expected registering on the clone not to affect the original registry")
	}
	if !clone.Has("a") {
		t.Fatalf("expected the clone to retain tools present at clone time")
	}
}
