package world

import "testing"

func TestRegisterMaterial(t *testing.T) {
	m := RegisterMaterial(MaterialProperties{Name: "test:marble", Solid: true, Opaque: true})
	if got := m.Name(); got != "test:marble" {
		t.Fatalf("expected registered name, got %q", got)
	}
	if !m.Solid() {
		t.Fatalf("expected the material to be solid")
	}
	// Registering the same name again returns the same material.
	again := RegisterMaterial(MaterialProperties{Name: "test:marble"})
	if again != m {
		t.Fatalf("expected re-registration to return the existing material")
	}
	if again.Properties().Solid != true {
		t.Fatalf("expected re-registration to keep the original properties")
	}
}

func TestMaterialByName(t *testing.T) {
	m, ok := MaterialByName("core:stone")
	if !ok || m != Stone {
		t.Fatalf("expected to resolve stone by name, got %v, %v", m, ok)
	}
	if _, ok := MaterialByName("test:does_not_exist"); ok {
		t.Fatalf("expected an unknown name to not resolve")
	}
}

func TestPredefinedMaterials(t *testing.T) {
	if !Air.Air() || Air.Solid() {
		t.Fatalf("air must be insubstantial")
	}
	if Torch.Properties().LightEmission != 14 {
		t.Fatalf("expected torch emission 14, got %d", Torch.Properties().LightEmission)
	}
	if !OakLeaves.Properties().Leaves || !OakLog.Properties().Log {
		t.Fatalf("leaf and log flags must be set on the oak materials")
	}
	if !Water.Properties().Watery || Water.Solid() {
		t.Fatalf("water must be watery and not solid")
	}
}
