package notify

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	notices []Notice
}

func (r *recorder) Notify(n Notice) { r.notices = append(r.notices, n) }

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.now = func() time.Time { return time.Date(2026, 10, 17, 9, 5, 7, 0, time.UTC) }

	c.Notify(Notice{Level: LevelError, Message: "Invalid credentials"})
	c.Notify(Notice{Level: LevelWarning, Message: "Low blood glucose!"})
	c.Notify(Notice{Level: LevelInfo, Message: "No data available."})

	assert.Equal(t,
		"[09:05:07] Error: Invalid credentials\n"+
			"[09:05:07] Warning: Low blood glucose!\n"+
			"[09:05:07] No data available.\n",
		buf.String())
}

func TestLimiter(t *testing.T) {
	rec := &recorder{}
	now := time.Unix(1_700_000_000, 0)
	l := NewLimiter(rec, 10*time.Minute)
	l.now = func() time.Time { return now }

	rejected := Notice{Level: LevelError, Key: "auth", Message: "rejected"}
	l.Notify(rejected)
	l.Notify(rejected)
	assert.Len(t, rec.notices, 1, "repeat within the window is dropped")

	l.Notify(Notice{Level: LevelWarning, Key: "low", Message: "low"})
	assert.Len(t, rec.notices, 2, "other keys are independent")

	now = now.Add(9 * time.Minute)
	l.Notify(rejected)
	assert.Len(t, rec.notices, 2, "still inside the window")

	now = now.Add(2 * time.Minute)
	l.Notify(rejected)
	assert.Len(t, rec.notices, 3, "repeat after the window is delivered")

	l.Reset("auth")
	l.Notify(rejected)
	assert.Len(t, rec.notices, 4)
}

func TestLimiterSetWindow(t *testing.T) {
	rec := &recorder{}
	now := time.Unix(1_700_000_000, 0)
	l := NewLimiter(rec, time.Hour)
	l.now = func() time.Time { return now }

	low := Notice{Key: "glucose-low", Message: "low"}
	l.Notify(low)

	l.SetWindow(time.Minute)
	assert.Equal(t, time.Minute, l.Window())

	now = now.Add(2 * time.Minute)
	l.Notify(low)
	assert.Len(t, rec.notices, 2, "the shorter window applies to keys already seen")

	l.Notify(low)
	assert.Len(t, rec.notices, 2)
}

func TestLimiterIsResetter(t *testing.T) {
	var n Notifier = NewLimiter(Nop, time.Minute)
	_, ok := n.(Resetter)
	assert.True(t, ok)
}

func TestLimiterKeysByMessage(t *testing.T) {
	rec := &recorder{}
	l := NewLimiter(rec, time.Hour)

	l.Notify(Notice{Message: "a"})
	l.Notify(Notice{Message: "a"})
	l.Notify(Notice{Message: "b"})

	assert.Len(t, rec.notices, 2)
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, b, Nop}.Notify(Notice{Message: "x"})

	assert.Len(t, a.notices, 1)
	assert.Len(t, b.notices, 1)
}
