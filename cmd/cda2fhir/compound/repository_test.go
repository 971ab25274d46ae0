package compound

import (
	"context"
	"testing"

	"github.com/SanteonNL/cda2fhir/cmd/cda2fhir/datasource/datasourcetest"
	"github.com/rs/zerolog"
)

func TestLookupCompounds(t *testing.T) {
	svc := datasourcetest.New(t,
		`INSERT INTO compound (cid, name, inchi, smiles) VALUES
			('5394', 'TEMOZOLOMIDE', 'InChI=1S/C6H6N6O2', 'CN1C(=O)N2C=NC(=C2N=N1)C(=O)N'),
			('2244', 'ASPIRIN', NULL, 'CC(=O)OC1=CC=CC=C1C(=O)O'),
			('2245', 'ASPIRIN', NULL, NULL)`,
	)
	repo, err := NewRepository(svc.DB(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	ctx := context.Background()

	tests := []struct {
		name      string
		names     []string
		limit     int
		wantFound bool
		wantCIDs  []string
	}{
		{"exact upper-cased match", []string{" temozolomide "}, 0, true, []string{"5394"}},
		{"several rows ordered by cid", []string{"Aspirin"}, 0, true, []string{"2244", "2245"}},
		{"limit applies", []string{"ASPIRIN"}, 1, true, []string{"2244"}},
		{"no match", []string{"UNKNOWNDRUG123"}, 0, false, nil},
		{"empty names", []string{" "}, 0, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, rows, err := repo.LookupCompounds(ctx, tt.names, tt.limit)
			if err != nil {
				t.Fatalf("LookupCompounds() error = %v", err)
			}
			if found != tt.wantFound {
				t.Errorf("found = %v, want %v", found, tt.wantFound)
			}
			if len(rows) != len(tt.wantCIDs) {
				t.Fatalf("rows = %+v, want cids %v", rows, tt.wantCIDs)
			}
			for i, row := range rows {
				if row.CID != tt.wantCIDs[i] {
					t.Errorf("row %d cid = %s, want %s", i, row.CID, tt.wantCIDs[i])
				}
			}
		})
	}
}

func TestLookupCompoundsHonoursContext(t *testing.T) {
	svc := datasourcetest.New(t)
	repo, err := NewRepository(svc.DB(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := repo.LookupCompounds(ctx, []string{"ASPIRIN"}, 1); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
