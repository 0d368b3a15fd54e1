package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/icco/minesduel/store"
)

func TestRunBoard(t *testing.T) {
	db, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, h := range []string{"zed", "amy"} {
		if _, err := db.CreateUser(ctx, h, "x"); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	if err := run(ctx, &out, db, options{Limit: 10}); err != nil {
		t.Fatalf("%+v", err)
	}
	got := out.String()
	if !strings.Contains(got, "amy") || !strings.Contains(got, "zed") {
		t.Errorf("board is missing handles:\n%s", got)
	}
	if strings.Index(got, "amy") > strings.Index(got, "zed") {
		t.Errorf("ties should sort by handle:\n%s", got)
	}

	out.Reset()
	if err := run(ctx, &out, db, options{Handle: "amy"}); err != nil {
		t.Fatalf("%+v", err)
	}
	if !strings.Contains(out.String(), "LAST") {
		t.Errorf("placements not printed:\n%s", out.String())
	}

	if err := run(ctx, &out, db, options{Handle: "nobody"}); err == nil {
		t.Error("expected an error for an unknown handle")
	}
}
