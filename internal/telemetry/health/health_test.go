package health

import (
	"context"
	"testing"
	"time"
)

func TestCollectReturnsBoundedPercentages(t *testing.T) {
	snap, err := Collect(context.Background(), t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for name, v := range map[string]float64{
		"cpu":  snap.CPUPercent,
		"mem":  snap.MemPercent,
		"disk": snap.DiskPercent,
	} {
		if v < 0 || v > 100 {
			t.Errorf("%s percent = %v, want within [0,100]", name, v)
		}
	}
}

func TestCollectDefaultsEmptyPathToRoot(t *testing.T) {
	if _, err := Collect(context.Background(), "", 10*time.Millisecond); err != nil {
		t.Fatalf("Collect with empty path: %v", err)
	}
}
