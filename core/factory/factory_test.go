package factory

import "testing"

type sample struct{ Rate float64 }

type sampleConf struct {
	Rate float64 `json:"rate"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("s", func(conf map[string]any) (*sample, error) {
		var c sampleConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &sample{Rate: c.Rate}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"rate": 0.16}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Rate != 0.16 {
		t.Fatalf("rate = %v", got.Rate)
	}

	if _, err := reg.Create(ModuleConfig{Type: "missing"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry[*sample]()
	f := func(map[string]any) (*sample, error) { return &sample{}, nil }
	if err := reg.Register("s", f); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("s", f); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatalf("expected nil factory error")
	}
}
