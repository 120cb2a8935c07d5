package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	logx "dunswatch/pkg/logx"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []int64
	failFor  map[int64]int // remaining failures per chat
	failText string
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failFor[chatID]; n > 0 {
		f.failFor[chatID] = n - 1
		return errors.New("telegram: 429")
	}
	f.sent = append(f.sent, chatID)
	f.failText = text
	return nil
}

func TestBroadcastAll(t *testing.T) {
	fs := &fakeSender{}
	s := NewService(Config{RatePerSec: 1000}, fs, logx.Nop())

	sent, failed := s.Broadcast(context.Background(), []int64{1, 2, 3}, "hello")
	if sent != 3 || failed != 0 {
		t.Fatalf("sent=%d failed=%d", sent, failed)
	}
	if len(fs.sent) != 3 {
		t.Fatalf("sender got %d calls", len(fs.sent))
	}
}

func TestBroadcastRetriesThenSucceeds(t *testing.T) {
	fs := &fakeSender{failFor: map[int64]int{7: 2}}
	s := NewService(Config{RatePerSec: 1000, RetryMax: 2}, fs, logx.Nop())

	sent, failed := s.Broadcast(context.Background(), []int64{7}, "hello")
	if sent != 1 || failed != 0 {
		t.Fatalf("sent=%d failed=%d", sent, failed)
	}
}

func TestBroadcastPerChatFailureDoesNotAbort(t *testing.T) {
	fs := &fakeSender{failFor: map[int64]int{2: 10}}
	s := NewService(Config{RatePerSec: 1000, RetryMax: 1}, fs, logx.Nop())

	sent, failed := s.Broadcast(context.Background(), []int64{1, 2, 3}, "hello")
	if sent != 2 || failed != 1 {
		t.Fatalf("sent=%d failed=%d", sent, failed)
	}
}

func TestBroadcastCanceledContext(t *testing.T) {
	fs := &fakeSender{}
	s := NewService(Config{RatePerSec: 1000}, fs, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sent, failed := s.Broadcast(ctx, []int64{1, 2}, "hello")
	if sent != 0 || failed != 2 {
		t.Fatalf("sent=%d failed=%d", sent, failed)
	}
}

func TestSplitTelegramTextShort(t *testing.T) {
	t.Parallel()
	got := splitTelegramText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

func TestSplitTelegramTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		lines = append(lines, strings.Repeat("x", 50))
	}
	text := strings.Join(lines, "\n")

	chunks := splitTelegramText(text, 500)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 500 {
			t.Fatalf("chunk %d too long: %d", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d has dangling newline", i)
		}
	}
	if strings.Join(chunks, "\n") != text {
		t.Fatal("split lost content")
	}
}

func TestSplitTelegramTextAvoidsTagSplit(t *testing.T) {
	t.Parallel()
	// A long run with a tag straddling the naive cut point.
	text := strings.Repeat("a", 95) + `<a href="https://example.com/product">상품보기</a>`
	chunks := splitTelegramText(text, 100)
	for _, c := range chunks {
		open := strings.Count(c, "<")
		closed := strings.Count(c, ">")
		if open != closed {
			t.Fatalf("chunk splits inside a tag: %q", c)
		}
	}
}
