package judge

import (
	"context"
	"testing"
	"time"
)

func TestPacer_EnforcesMinimumSpacing(t *testing.T) {
	spacing := 50 * time.Millisecond
	p := NewPacer(spacing)
	ctx := context.Background()

	// 1回目は待機しない
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("1回目のWaitがエラーを返した: %v", err)
	}

	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("2回目のWaitがエラーを返した: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < spacing {
		t.Errorf("連続する2回のリクエストの間隔 = %v, want >= %v", elapsed, spacing)
	}
}

func TestPacer_SerializesConcurrentCallers(t *testing.T) {
	spacing := 30 * time.Millisecond
	p := NewPacer(spacing)
	ctx := context.Background()

	const callers = 4
	done := make(chan time.Time, callers)

	for i := 0; i < callers; i++ {
		go func() {
			if err := p.Wait(ctx); err != nil {
				t.Errorf("Wait がエラーを返した: %v", err)
			}
			done <- time.Now()
		}()
	}

	var times []time.Time
	for i := 0; i < callers; i++ {
		times = append(times, <-done)
	}

	// 全呼び出しの通過時刻は spacing * (callers-1) 以上の幅に広がるはず
	min, max := times[0], times[0]
	for _, ts := range times[1:] {
		if ts.Before(min) {
			min = ts
		}
		if ts.After(max) {
			max = ts
		}
	}
	want := spacing * time.Duration(callers-1)
	if got := max.Sub(min); got < want {
		t.Errorf("並行呼び出しの通過時刻の幅 = %v, want >= %v", got, want)
	}
}

func TestPacer_ZeroSpacingDoesNotBlock(t *testing.T) {
	p := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("Wait がエラーを返した: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("間隔0のPacerがブロックした: %v", elapsed)
	}
}

func TestPacer_CanceledContextReturnsError(t *testing.T) {
	p := NewPacer(time.Hour)
	ctx := context.Background()

	// 1トークン目を消費
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("1回目のWaitがエラーを返した: %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	if err := p.Wait(canceled); err == nil {
		t.Error("キャンセル済みコンテキストでWaitがエラーを返さなかった")
	}
}
