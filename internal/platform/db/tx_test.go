package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
)

type stubTx struct{ pgx.Tx }

func TestTxFromContextEmpty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Fatalf("TxFromContext on a bare context = %v, want nil", tx)
	}
}

func TestWithTxRoundtrip(t *testing.T) {
	want := &stubTx{}
	ctx := WithTx(context.Background(), want)

	got := TxFromContext(ctx)
	if got != pgx.Tx(want) {
		t.Fatalf("TxFromContext = %v, want the stored transaction", got)
	}
}
