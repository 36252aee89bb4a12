package module

import (
	"sync"
	"testing"
)

// registry tests share the package-global map, so none of them run parallel

type quotaPorts struct {
	Scope string
	Limit int
}

func TestRegistry_RoundTrip(t *testing.T) {
	Reset()

	want := quotaPorts{Scope: "enrichment", Limit: 500}
	Register("quota", want)

	got, ok := PortsAs[quotaPorts]("quota")
	if !ok || got != want {
		t.Fatalf("PortsAs = %v, %v", got, ok)
	}
}

func TestRegistry_MissingAndMismatch(t *testing.T) {
	Reset()
	Register("quota", quotaPorts{Scope: "cleanup"})

	if _, ok := PortsAs[quotaPorts]("beers"); ok {
		t.Fatal("unknown name must miss")
	}
	if _, ok := PortsAs[string]("quota"); ok {
		t.Fatal("wrong type must miss")
	}
}

func TestRegistry_LastRegistrationWins(t *testing.T) {
	Reset()

	Register("quota", quotaPorts{Limit: 1})
	Register("quota", quotaPorts{Limit: 2})

	got, _ := PortsAs[quotaPorts]("quota")
	if got.Limit != 2 {
		t.Fatalf("expected the second registration, got %+v", got)
	}
}

func TestRegistry_NamesAreSorted(t *testing.T) {
	Reset()

	Register("quota", nil)
	Register("admission", nil)
	Register("beers", nil)

	got := Names()
	want := []string{"admission", "beers", "quota"}
	if len(got) != len(want) {
		t.Fatalf("Names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentRegisterAndRead(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Register("beers", quotaPorts{Limit: 7})
		}()
		go func() {
			defer wg.Done()
			_, _ = PortsAs[quotaPorts]("beers")
			_ = Names()
		}()
	}
	wg.Wait()

	if got, ok := PortsAs[quotaPorts]("beers"); !ok || got.Limit != 7 {
		t.Fatalf("registry lost the entry under contention: %v %v", got, ok)
	}
}
