package docstore

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragkit/ragkit/internal/testutil"
)

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(nil, nil, "documents", nil); err == nil {
		t.Error("NewStore() should reject nil pool")
	}

	pool := new(pgxpool.Pool)
	logger := testutil.DiscardLogger()

	for _, table := range []string{"", "1docs", "docs; drop", `d"ocs`, "docs.other"} {
		if _, err := NewStore(pool, nil, table, logger); err == nil {
			t.Errorf("NewStore() should reject table name %q", table)
		}
	}

	if _, err := NewStore(pool, nil, "documents", logger); err != nil {
		t.Errorf("NewStore() with valid table = %v", err)
	}
	if _, err := NewStore(pool, nil, "_my_docs_v2", logger); err != nil {
		t.Errorf("NewStore() with underscore table = %v", err)
	}
}
