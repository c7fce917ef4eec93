package indexes

import (
	"errors"
	"testing"

	"github.com/intorehq/intorehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestKeySig(t *testing.T) {
	sig := keySig(bson.D{{Key: "district_id", Value: 1}, {Key: "code", Value: 1}})
	want := "district_id:1, code:1"
	if sig != want {
		t.Errorf("keySig = %q, want %q", sig, want)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"e11000 text", errors.New("E11000 duplicate key error"), true},
		{"command error", mongo.CommandError{Code: 11000}, true},
		{"write exception", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateKeyErr(tt.err); got != tt.want {
				t.Errorf("isDuplicateKeyErr = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)

	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll: %v", err)
	}
	// Second run must reuse every index without error.
	if err := EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll: %v", err)
	}
}
