package monitoring

import (
	"errors"
	"testing"
	"time"
)

type fakeMonitor struct {
	errs   []error
	panics []any
}

func (f *fakeMonitor) CaptureException(err error, _ map[string]string) { f.errs = append(f.errs, err) }
func (f *fakeMonitor) CapturePanic(v any, _ map[string]string)         { f.panics = append(f.panics, v) }
func (f *fakeMonitor) Flush(time.Duration)                             {}

func TestCaptureAndRecover(t *testing.T) {
	m := &fakeMonitor{}
	Init(m)
	t.Cleanup(func() { Init(nil) })

	CaptureException(nil, nil)
	CaptureException(errors.New("boom"), map[string]string{"component": "test"})
	if len(m.errs) != 1 {
		t.Fatalf("expected one captured error got %d", len(m.errs))
	}

	func() {
		defer func() {
			if r := recover(); r != "bad" {
				t.Fatalf("panic not propagated: %v", r)
			}
		}()
		defer Recover()
		panic("bad")
	}()
	if len(m.panics) != 1 {
		t.Fatalf("panic not captured")
	}
}
