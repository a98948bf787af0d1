package fixtures

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"carrental/internal/app/uow"
	"carrental/internal/domain/rental"
	"carrental/internal/infra/storage/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "companies.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_RegistersCompanies(t *testing.T) {
	path := writeFile(t, `[
		{"name": "Hertz", "car_types": [
			{"name": "Compact", "seats": 4, "trunk_space": 300, "price_per_day_cents": 5000, "currency": "EUR", "cars": [7], "count": 2},
			{"name": "SUV", "seats": 5, "price_per_day_cents": 9000, "currency": "EUR", "count": 1}
		]},
		{"name": "Broken", "car_types": [{"name": "X", "seats": 0, "price_per_day_cents": 1, "currency": "EUR"}]}
	]`)
	store := memory.NewStore(memory.NewOutbox())

	n, err := Load(context.Background(), path, store, discard)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 company loaded, got %d", n)
	}
	names, _ := store.CompanyNames(context.Background())
	if len(names) != 1 || names[0] != "Hertz" {
		t.Fatalf("unexpected companies %v", names)
	}

	var cars []*rental.Car
	err = uow.Runner{Factory: store}.ReadCompany(context.Background(), "Hertz", func(ctx context.Context, unit uow.UnitOfWork) error {
		var err error
		cars, err = unit.Rentals().Cars(ctx, "Hertz")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	got := map[rental.CarID]string{}
	for _, c := range cars {
		got[c.ID] = c.Type
	}
	want := map[rental.CarID]string{7: "Compact", 1: "Compact", 2: "Compact", 3: "SUV"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for id, typ := range want {
		if got[id] != typ {
			t.Errorf("car %d: expected %s, got %s", id, typ, got[id])
		}
	}
}

func TestLoad_MissingFileIsSkipped(t *testing.T) {
	n, err := Load(context.Background(), filepath.Join(t.TempDir(), "none.json"), memory.NewStore(memory.NewOutbox()), discard)
	if err != nil || n != 0 {
		t.Errorf("expected skip, got %d, %v", n, err)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	if _, err := Load(context.Background(), writeFile(t, "{"), memory.NewStore(memory.NewOutbox()), discard); err == nil {
		t.Error("expected decode error")
	}
}

func TestBuild_DuplicateIDs(t *testing.T) {
	fx := companyFixture{Name: "Avis", CarTypes: []carTypeFixture{
		{Name: "A", Seats: 2, PriceCents: 1, Currency: "EUR", Cars: []int64{1}},
		{Name: "B", Seats: 2, PriceCents: 1, Currency: "EUR", Cars: []int64{1}},
	}}
	if _, _, err := fx.build(); err == nil {
		t.Error("expected duplicate id error")
	}
}

func TestSampleDataLoads(t *testing.T) {
	path := filepath.Join("..", "..", "..", "data", "companies.json")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("sample data not found: %v", err)
	}
	n, err := Load(context.Background(), path, memory.NewStore(memory.NewOutbox()), discard)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Error("expected sample companies")
	}
}
