package avs

import (
	"testing"
)

func newTestRegistry(built *int) *Registry {
	return NewRegistry(func(token string, region Region) (*Client, error) {
		*built++
		return NewClient(Config{Region: region, Endpoint: "http://127.0.0.1:1"}, Collaborators{Tokens: StaticToken(token)}, nil), nil
	}, nil)
}

func TestRegistryReusesPerTokenAndRegion(t *testing.T) {
	built := 0
	reg := newTestRegistry(&built)
	defer reg.Close()

	a, err := reg.Get("t1", RegionNA)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	again, _ := reg.Get(" t1 ", "na")
	if again != a {
		t.Fatal("Get(t1, NA) built a second client")
	}

	eu, _ := reg.Get("t1", RegionEU)
	if eu == a {
		t.Fatal("Get(t1, EU) reused the NA client")
	}

	b, _ := reg.Get("t2", RegionNA)
	if b == a {
		t.Fatal("Get(t2, NA) reused the t1 client")
	}
	if built != 3 {
		t.Fatalf("built=%d, want 3", built)
	}

	if _, err := reg.Get(" ", RegionNA); err == nil {
		t.Fatal("Get(blank token) error=nil, want non-nil")
	}
}

func TestRegistryKeepsOtherTokensOpen(t *testing.T) {
	built := 0
	reg := newTestRegistry(&built)
	defer reg.Close()

	a, _ := reg.Get("user-a", RegionNA)
	b, _ := reg.Get("user-b", RegionNA)
	if a.Closed() {
		t.Fatal("Get(user-b, NA) closed the user-a client")
	}
	if again, _ := reg.Get("user-a", RegionNA); again != a {
		t.Fatal("user-a client was replaced after user-b joined")
	}
	if again, _ := reg.Get("user-b", RegionNA); again != b {
		t.Fatal("user-b client was replaced")
	}
}

func TestRegistryRebuildsClosedClient(t *testing.T) {
	built := 0
	reg := newTestRegistry(&built)

	a, _ := reg.Get("t1", RegionNA)
	a.Close()
	b, _ := reg.Get("t1", RegionNA)
	if b == a {
		t.Fatal("closed client was handed out again")
	}
	if built != 2 {
		t.Fatalf("built=%d, want 2", built)
	}

	reg.Close()
	if !b.Closed() {
		t.Fatal("Registry.Close left a client open")
	}
}
